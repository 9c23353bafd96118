package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"uptimedock/app/internal/models"
)

var (
	// ErrURLExists is returned when adding a name that is already registered
	ErrURLExists = errors.New("URL with this name already exists")
	// ErrURLNotFound is returned when a name is not registered
	ErrURLNotFound = errors.New("URL with this name does not exist")
)

// AddURL registers a new monitored URL under a unique name
func AddURL(name, url string) (*models.URL, error) {
	res, err := DB.Exec(`INSERT INTO urls (name, url) VALUES (?, ?)`, name, url)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrURLExists
		}
		return nil, fmt.Errorf("add url %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.URL{ID: id, Name: name, URL: url}, nil
}

// EditURL changes the address registered under name
func EditURL(name, url string) (*models.URL, error) {
	res, err := DB.Exec(`UPDATE urls SET url = ? WHERE name = ?`, url, name)
	if err != nil {
		return nil, fmt.Errorf("edit url %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrURLNotFound
	}
	return GetURLByName(name)
}

// DeleteURL removes a URL from the registry. Its pings are kept.
func DeleteURL(name string) error {
	res, err := DB.Exec(`DELETE FROM urls WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete url %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrURLNotFound
	}
	return nil
}

// GetURLByName returns the URL registered under name
func GetURLByName(name string) (*models.URL, error) {
	var u models.URL
	err := DB.QueryRow(`SELECT id, name, url FROM urls WHERE name = ?`, name).Scan(&u.ID, &u.Name, &u.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrURLNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetURLs returns the registry in insertion order
func GetURLs() ([]models.URL, error) {
	rows, err := DB.Query(`SELECT id, name, url FROM urls ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []models.URL
	for rows.Next() {
		var u models.URL
		if err := rows.Scan(&u.ID, &u.Name, &u.URL); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// CountURLs returns the number of registered URLs
func CountURLs() (int, error) {
	var n int
	err := DB.QueryRow(`SELECT COUNT(*) FROM urls`).Scan(&n)
	return n, err
}
