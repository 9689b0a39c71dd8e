package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/madhubani/internal/calibration"
)

// Profile is a persisted calibration profile.
type Profile struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Values    calibration.Values `json:"values"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProfileRepository provides CRUD operations for calibration profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `id, name, neutral_mouth_gap, neutral_brow_gap, neutral_eye_aspect, samples, active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	var active int
	err := row.Scan(&p.ID, &p.Name,
		&p.Values.NeutralMouthGap, &p.Values.NeutralBrowGap, &p.Values.NeutralEyeAspect, &p.Values.Samples,
		&active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Active = active != 0
	return p, nil
}

// Create inserts a new profile. An empty ID is filled with a fresh UUID.
// The values must be a valid calibration.
func (r *ProfileRepository) Create(p *Profile) error {
	if err := p.Values.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Name == "" {
		return errors.New("profile name is required")
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if p.Active {
		if _, err := tx.Exec(`UPDATE profiles SET active = 0 WHERE active = 1`); err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name,
		p.Values.NeutralMouthGap, p.Values.NeutralBrowGap, p.Values.NeutralEyeAspect, p.Values.Samples,
		boolInt(p.Active), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a profile by its unique name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Active returns the active profile, or ErrNotFound when none is active.
func (r *ProfileRepository) Active() (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(`SELECT ` + profileColumns + ` FROM profiles WHERE active = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// UpdateValues replaces the calibration values of an existing profile.
func (r *ProfileRepository) UpdateValues(id string, v calibration.Values) error {
	if err := v.Validate(); err != nil {
		return err
	}
	result, err := r.db.Exec(
		`UPDATE profiles SET neutral_mouth_gap = ?, neutral_brow_gap = ?, neutral_eye_aspect = ?, samples = ?, updated_at = ?
		 WHERE id = ?`,
		v.NeutralMouthGap, v.NeutralBrowGap, v.NeutralEyeAspect, v.Samples, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// SetActive marks the profile active and every other profile inactive.
func (r *ProfileRepository) SetActive(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`UPDATE profiles SET active = 0 WHERE active = 1`); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE profiles SET active = 1, updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a profile from the database by its ID.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Save stores v as the active profile under name, creating the profile or
// updating the existing one with that name.
func (r *ProfileRepository) Save(name string, v calibration.Values) (*Profile, error) {
	existing, err := r.GetByName(name)
	switch {
	case errors.Is(err, ErrNotFound):
		p := &Profile{Name: name, Values: v, Active: true}
		if err := r.Create(p); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return p, nil
	case err != nil:
		return nil, err
	}

	if err := r.UpdateValues(existing.ID, v); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := r.SetActive(existing.ID); err != nil {
		return nil, err
	}
	return r.GetByID(existing.ID)
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
