package model

import "time"

// Tile is the stored position of a named tile inside a tilesheet.
// It carries no database-specific dependencies.
type Tile struct {
	ID        string    `json:"id"`
	Sheet     string    `json:"sheet"`
	Name      string    `json:"name"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	UpdatedAt time.Time `json:"updated_at"`
}
