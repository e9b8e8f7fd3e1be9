package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order at startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_name          VARCHAR(64)     NOT NULL,
		email              VARCHAR(255)    NOT NULL,
		password_hash      VARCHAR(255)    NOT NULL,
		role               ENUM('USER','ADMIN') NOT NULL DEFAULT 'USER',
		is_active          TINYINT(1)      NOT NULL DEFAULT 1,
		refresh_token_hash CHAR(64)        NULL,
		created_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_user_name (user_name),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		idempotency_key CHAR(64)        NULL,
		title           VARCHAR(255)    NOT NULL,
		description     TEXT            NOT NULL,
		poster_url      VARCHAR(1024)   NOT NULL,
		rating          DOUBLE          NOT NULL,
		release_date    DATE            NOT NULL,
		duration        INT UNSIGNED    NOT NULL,
		genre           JSON            NOT NULL,
		created_by      BIGINT UNSIGNED NULL,
		created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_movies_idempotency_key (idempotency_key),
		KEY idx_movies_title (title),
		KEY idx_movies_rating (rating),
		KEY idx_movies_release_date (release_date),
		KEY idx_movies_duration (duration),
		FULLTEXT KEY ft_movies_title_description (title, description),
		CONSTRAINT fk_movies_created_by FOREIGN KEY (created_by) REFERENCES users (id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the service needs when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
