package database

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    name          VARCHAR(50)  NOT NULL,
    email         VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    role          VARCHAR(16)  NOT NULL DEFAULT 'user',
    points        BIGINT       NOT NULL DEFAULT 0,
    bio           VARCHAR(500) NOT NULL DEFAULT '',
    location      VARCHAR(100) NOT NULL DEFAULT '',
    is_active     TINYINT(1)   NOT NULL DEFAULT 1,
    created_at    DATETIME(6)  NOT NULL,
    updated_at    DATETIME(6)  NOT NULL,
    UNIQUE KEY uq_users_email (email),
    CONSTRAINT chk_users_points CHECK (points >= 0)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
    id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    user_id    BIGINT UNSIGNED NOT NULL,
    token_hash CHAR(64)        NOT NULL,
    expires_at DATETIME(6)     NOT NULL,
    revoked_at DATETIME(6)     NULL,
    created_at DATETIME(6)     NOT NULL,
    UNIQUE KEY uq_refresh_tokens_hash (token_hash),
    KEY idx_refresh_tokens_user (user_id),
    CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS items (
    id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    uploader_id    BIGINT UNSIGNED NOT NULL,
    title          VARCHAR(100)  NOT NULL,
    description    VARCHAR(1000) NOT NULL,
    category       VARCHAR(20)   NOT NULL,
    item_type      VARCHAR(10)   NOT NULL,
    size           VARCHAR(10)   NOT NULL,
    item_condition VARCHAR(10)   NOT NULL,
    point_value    BIGINT        NOT NULL,
    tags           TEXT          NOT NULL,
    images         TEXT          NOT NULL,
    brand          VARCHAR(100)  NOT NULL DEFAULT '',
    color          VARCHAR(50)   NOT NULL DEFAULT '',
    material       VARCHAR(100)  NOT NULL DEFAULT '',
    season         VARCHAR(20)   NOT NULL DEFAULT '',
    status         VARCHAR(16)   NOT NULL DEFAULT 'pending',
    is_approved    TINYINT(1)    NOT NULL DEFAULT 0,
    approved_by    BIGINT UNSIGNED NULL,
    approved_at    DATETIME(6)   NULL,
    views          BIGINT        NOT NULL DEFAULT 0,
    created_at     DATETIME(6)   NOT NULL,
    updated_at     DATETIME(6)   NOT NULL,
    KEY idx_items_browse (status, is_approved, category, item_type),
    KEY idx_items_uploader (uploader_id, status),
    CONSTRAINT fk_items_uploader FOREIGN KEY (uploader_id) REFERENCES users(id),
    CONSTRAINT chk_items_points CHECK (point_value >= 1),
    CONSTRAINT chk_items_status CHECK (status IN ('pending','available','swapped','redeemed'))
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS item_likes (
    item_id    BIGINT UNSIGNED NOT NULL,
    user_id    BIGINT UNSIGNED NOT NULL,
    created_at DATETIME(6)     NOT NULL,
    PRIMARY KEY (item_id, user_id),
    CONSTRAINT fk_item_likes_item FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
    CONSTRAINT fk_item_likes_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS swap_requests (
    id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    from_user_id    BIGINT UNSIGNED NOT NULL,
    to_user_id      BIGINT UNSIGNED NOT NULL,
    item_id         BIGINT UNSIGNED NOT NULL,
    kind            VARCHAR(10)  NOT NULL,
    message         VARCHAR(500) NOT NULL DEFAULT '',
    offered_item_id BIGINT UNSIGNED NULL,
    points_offered  BIGINT       NOT NULL DEFAULT 0,
    status          VARCHAR(16)  NOT NULL DEFAULT 'pending',
    reason          VARCHAR(200) NOT NULL DEFAULT '',
    accepted_at     DATETIME(6)  NULL,
    declined_at     DATETIME(6)  NULL,
    cancelled_at    DATETIME(6)  NULL,
    cancelled_by    BIGINT UNSIGNED NULL,
    created_at      DATETIME(6)  NOT NULL,
    updated_at      DATETIME(6)  NOT NULL,
    KEY idx_swaps_from (from_user_id, status, created_at),
    KEY idx_swaps_to (to_user_id, status, created_at),
    KEY idx_swaps_item (item_id, status),
    CONSTRAINT chk_swaps_kind CHECK (kind IN ('swap','redeem')),
    CONSTRAINT chk_swaps_status CHECK (status IN ('pending','accepted','declined','cancelled','completed'))
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS point_entries (
    id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    user_id         BIGINT UNSIGNED NOT NULL,
    delta           BIGINT       NOT NULL,
    balance_after   BIGINT       NOT NULL,
    reason          VARCHAR(32)  NOT NULL,
    swap_request_id BIGINT UNSIGNED NULL,
    created_at      DATETIME(6)  NOT NULL,
    KEY idx_point_entries_user (user_id, created_at),
    CONSTRAINT fk_point_entries_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// swap_requests deliberately carries no foreign key to items: an item can
// be deleted while requests against it are still pending.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    name          TEXT     NOT NULL,
    email         TEXT     NOT NULL UNIQUE,
    password_hash TEXT     NOT NULL,
    role          TEXT     NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
    points        INTEGER  NOT NULL DEFAULT 0 CHECK (points >= 0),
    bio           TEXT     NOT NULL DEFAULT '',
    location      TEXT     NOT NULL DEFAULT '',
    is_active     INTEGER  NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
    id         INTEGER PRIMARY KEY,
    user_id    INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash TEXT     NOT NULL UNIQUE,
    expires_at DATETIME NOT NULL,
    revoked_at DATETIME,
    created_at DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS items (
    id             INTEGER PRIMARY KEY,
    uploader_id    INTEGER  NOT NULL REFERENCES users(id),
    title          TEXT     NOT NULL,
    description    TEXT     NOT NULL,
    category       TEXT     NOT NULL,
    item_type      TEXT     NOT NULL,
    size           TEXT     NOT NULL,
    item_condition TEXT     NOT NULL,
    point_value    INTEGER  NOT NULL CHECK (point_value >= 1),
    tags           TEXT     NOT NULL DEFAULT '[]',
    images         TEXT     NOT NULL DEFAULT '[]',
    brand          TEXT     NOT NULL DEFAULT '',
    color          TEXT     NOT NULL DEFAULT '',
    material       TEXT     NOT NULL DEFAULT '',
    season         TEXT     NOT NULL DEFAULT '',
    status         TEXT     NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'available', 'swapped', 'redeemed')),
    is_approved    INTEGER  NOT NULL DEFAULT 0,
    approved_by    INTEGER,
    approved_at    DATETIME,
    views          INTEGER  NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_items_browse ON items(status, is_approved, category, item_type)`,
	`CREATE INDEX IF NOT EXISTS idx_items_uploader ON items(uploader_id, status)`,
	`CREATE TABLE IF NOT EXISTS item_likes (
    item_id    INTEGER  NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    user_id    INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (item_id, user_id)
)`,
	`CREATE TABLE IF NOT EXISTS swap_requests (
    id              INTEGER PRIMARY KEY,
    from_user_id    INTEGER  NOT NULL,
    to_user_id      INTEGER  NOT NULL,
    item_id         INTEGER  NOT NULL,
    kind            TEXT     NOT NULL CHECK (kind IN ('swap', 'redeem')),
    message         TEXT     NOT NULL DEFAULT '',
    offered_item_id INTEGER,
    points_offered  INTEGER  NOT NULL DEFAULT 0,
    status          TEXT     NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'declined', 'cancelled', 'completed')),
    reason          TEXT     NOT NULL DEFAULT '',
    accepted_at     DATETIME,
    declined_at     DATETIME,
    cancelled_at    DATETIME,
    cancelled_by    INTEGER,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_swaps_from ON swap_requests(from_user_id, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_swaps_to ON swap_requests(to_user_id, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_swaps_item ON swap_requests(item_id, status)`,
	`CREATE TABLE IF NOT EXISTS point_entries (
    id              INTEGER PRIMARY KEY,
    user_id         INTEGER  NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    delta           INTEGER  NOT NULL,
    balance_after   INTEGER  NOT NULL,
    reason          TEXT     NOT NULL,
    swap_request_id INTEGER,
    created_at      DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_point_entries_user ON point_entries(user_id, created_at)`,
}

// Migrate creates any missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d == SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
