package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "embed"

	"github.com/lib/pq"
	"golang.org/x/exp/slog"
)

//go:embed schema.sql
var schema string

var (
	ErrDuplicateUsername = errors.New("database: username already taken")
	ErrUserNotFound      = errors.New("database: user not found")
)

type PostgreSQLDatabase struct {
	db *sql.DB
}

func NewPostgreSQLDatabase() (*PostgreSQLDatabase, error) {
	var (
		user     = os.Getenv("POSTGRES_USER")
		password = os.Getenv("POSTGRES_PASSWORD")
		port     = os.Getenv("DB_PORT")
		connStr  = fmt.Sprintf("user=%s password=%s port=%s dbname=tickets sslmode=disable connect_timeout=5", user, password, port)
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	pg := &PostgreSQLDatabase{db: db}
	if err := pg.db.Ping(); err != nil {
		return nil, err
	}

	slog.Debug("Database pinged")

	if _, err := pg.db.ExecContext(context.Background(), schema); err != nil {
		slog.Debug("Failed to create database schema", "error", err)
	} else {
		slog.Info("Successfully created the database schema")
	}

	return pg, nil
}

func (pg *PostgreSQLDatabase) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	const createUser = `
	INSERT INTO users (username, password_hash)
	VALUES($1, $2)
	RETURNING id
	`

	row := pg.db.QueryRowContext(ctx, createUser, username, passwordHash)
	var id int64
	if err := row.Scan(&id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrDuplicateUsername
		}

		return 0, err
	}

	return id, nil
}

func (pg *PostgreSQLDatabase) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const getUserByUsername = `
	SELECT
		id,
    	username,
    	password_hash
	FROM users
	WHERE username = $1
	`

	row := pg.db.QueryRowContext(ctx, getUserByUsername, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}

		return User{}, err
	}

	return u, nil
}

func (pg *PostgreSQLDatabase) CreateTicket(ctx context.Context, t Ticket) (int64, error) {
	const createTicket = `
	INSERT INTO tickets (first_name, last_name, phone_number, email, card_type, code, image_path)
	VALUES($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`

	row := pg.db.QueryRowContext(ctx, createTicket,
		t.FirstName,
		t.LastName,
		t.PhoneNumber,
		t.Email,
		t.CardType,
		t.Code,
		t.ImagePath,
	)

	var id int64
	err := row.Scan(&id)

	return id, err
}

func (pg *PostgreSQLDatabase) GetAllTickets(ctx context.Context) ([]Ticket, error) {
	const getAllTickets = `
	SELECT
		id,
    	first_name,
    	last_name,
    	phone_number,
    	email,
    	card_type,
    	code,
    	image_path
	FROM tickets
	ORDER BY id
	`

	rows, err := pg.db.QueryContext(ctx, getAllTickets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Ticket, 0)

	for rows.Next() {
		var t Ticket
		if err := rows.Scan(
			&t.ID,
			&t.FirstName,
			&t.LastName,
			&t.PhoneNumber,
			&t.Email,
			&t.CardType,
			&t.Code,
			&t.ImagePath,
		); err != nil {
			return nil, err
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
