package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/lift/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection keeps
	// the server's HTTP handlers and the background saver from tripping
	// "database is locked".
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Exercises ---

const exerciseColumns = `id, name, default_sets, default_reps, default_rest_seconds, default_weight, equipment, muscle_group, created_at, updated_at`

func scanExercise(row interface{ Scan(...any) error }) (*models.ExerciseTemplate, error) {
	e := &models.ExerciseTemplate{}
	var weight sql.NullFloat64
	if err := row.Scan(&e.ID, &e.Name, &e.DefaultSets, &e.DefaultReps, &e.DefaultRestSeconds, &weight,
		&e.Equipment, &e.MuscleGroup, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if weight.Valid {
		e.DefaultWeight = &weight.Float64
	}
	return e, nil
}

func (s *SQLiteStore) CreateExercise(ctx context.Context, e *models.ExerciseTemplate) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exercises (`+exerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.DefaultSets, e.DefaultReps, e.DefaultRestSeconds, e.DefaultWeight,
		e.Equipment, e.MuscleGroup, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create exercise: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExercise(ctx context.Context, id string) (*models.ExerciseTemplate, error) {
	e, err := scanExercise(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) GetExerciseByName(ctx context.Context, name string) (*models.ExerciseTemplate, error) {
	e, err := scanExercise(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE name = ? COLLATE NOCASE`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exercise %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise by name: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListExercises(ctx context.Context) ([]*models.ExerciseTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var exercises []*models.ExerciseTemplate
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

func (s *SQLiteStore) UpdateExercise(ctx context.Context, e *models.ExerciseTemplate) error {
	e.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE exercises SET name=?, default_sets=?, default_reps=?, default_rest_seconds=?, default_weight=?, equipment=?, muscle_group=?, updated_at=?
		WHERE id=?`,
		e.Name, e.DefaultSets, e.DefaultReps, e.DefaultRestSeconds, e.DefaultWeight,
		e.Equipment, e.MuscleGroup, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update exercise: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("exercise %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteExercise(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM exercises WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Routines ---

func (s *SQLiteStore) CreateRoutine(ctx context.Context, r *models.Routine) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	return s.inTx(ctx, "create routine", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routines (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Description, r.CreatedAt, r.UpdatedAt,
		); err != nil {
			return err
		}
		return insertRoutineExercises(ctx, tx, r)
	})
}

func insertRoutineExercises(ctx context.Context, tx *sql.Tx, r *models.Routine) error {
	for i := range r.Exercises {
		re := &r.Exercises[i]
		re.Position = i
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routine_exercises (routine_id, position, exercise_id, sets, reps, weight, rest_seconds) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, re.Position, re.ExerciseID, re.Sets, re.Reps, re.Weight, re.RestSeconds,
		); err != nil {
			return fmt.Errorf("exercise %d: %w", i, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetRoutine(ctx context.Context, id string) (*models.Routine, error) {
	return s.getRoutine(ctx, "id", id)
}

// GetRoutineByName matches names case-insensitively.
func (s *SQLiteStore) GetRoutineByName(ctx context.Context, name string) (*models.Routine, error) {
	return s.getRoutine(ctx, "name", name)
}

func (s *SQLiteStore) getRoutine(ctx context.Context, column, value string) (*models.Routine, error) {
	r := &models.Routine{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM routines WHERE `+column+` = ? COLLATE NOCASE`, value,
	).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("routine %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get routine: %w", err)
	}
	if err := s.loadRoutineExercises(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) loadRoutineExercises(ctx context.Context, r *models.Routine) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, position, sets, reps, weight, rest_seconds
		FROM routine_exercises WHERE routine_id = ? ORDER BY position`, r.ID)
	if err != nil {
		return fmt.Errorf("list routine exercises: %w", err)
	}
	defer func() { _ = rows.Close() }()

	r.Exercises = nil
	for rows.Next() {
		var re models.RoutineExercise
		var weight sql.NullFloat64
		if err := rows.Scan(&re.ExerciseID, &re.Position, &re.Sets, &re.Reps, &weight, &re.RestSeconds); err != nil {
			return fmt.Errorf("scan routine exercise: %w", err)
		}
		if weight.Valid {
			re.Weight = &weight.Float64
		}
		r.Exercises = append(r.Exercises, re)
	}
	return rows.Err()
}

func (s *SQLiteStore) ListRoutines(ctx context.Context) ([]*models.Routine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at, updated_at FROM routines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	var routines []*models.Routine
	for rows.Next() {
		r := &models.Routine{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		routines = append(routines, r)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}

	// The single connection is free again once rows is closed.
	for _, r := range routines {
		if err := s.loadRoutineExercises(ctx, r); err != nil {
			return nil, err
		}
	}
	return routines, nil
}

// UpdateRoutine replaces the routine's fields and its exercise list.
func (s *SQLiteStore) UpdateRoutine(ctx context.Context, r *models.Routine) error {
	r.UpdatedAt = time.Now().UTC()
	return s.inTx(ctx, "update routine", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE routines SET name=?, description=?, updated_at=? WHERE id=?`,
			r.Name, r.Description, r.UpdatedAt, r.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("routine %s: %w", r.ID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM routine_exercises WHERE routine_id = ?`, r.ID); err != nil {
			return err
		}
		return insertRoutineExercises(ctx, tx, r)
	})
}

func (s *SQLiteStore) DeleteRoutine(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("routine %s: %w", id, ErrNotFound)
	}
	return nil
}

// FetchTemplate expands a routine into planned sets. Routine entries left at
// zero fall back to the exercise defaults.
func (s *SQLiteStore) FetchTemplate(ctx context.Context, routineID string) (*models.Template, error) {
	r, err := s.GetRoutine(ctx, routineID)
	if err != nil {
		return nil, err
	}

	t := &models.Template{RoutineID: r.ID, RoutineName: r.Name}
	for _, re := range r.Exercises {
		ex, err := s.GetExercise(ctx, re.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("routine %s: %w", r.Name, err)
		}
		t.Exercises = append(t.Exercises, buildTemplateExercise(ex, re))
	}
	return t, nil
}

func buildTemplateExercise(ex *models.ExerciseTemplate, re models.RoutineExercise) models.TemplateExercise {
	sets := re.Sets
	if sets <= 0 {
		sets = ex.DefaultSets
	}
	reps := re.Reps
	if reps <= 0 {
		reps = ex.DefaultReps
	}
	weight := re.Weight
	if weight == nil {
		weight = ex.DefaultWeight
	}
	rest := re.RestSeconds
	if rest <= 0 {
		rest = ex.DefaultRestSeconds
	}

	te := models.TemplateExercise{Exercise: *ex, RestSeconds: rest}
	for i := 0; i < sets; i++ {
		ps := models.PlannedSet{Index: i, TargetReps: reps, RestSeconds: rest}
		if weight != nil {
			w := *weight
			ps.TargetWeight = &w
		}
		te.Sets = append(te.Sets, ps)
	}
	return te
}

// --- Workouts ---

// SaveWorkout upserts the full session in one transaction. Exercise and set
// rows are rewritten so the stored record always matches w exactly.
func (s *SQLiteStore) SaveWorkout(ctx context.Context, w *models.WorkoutSession) error {
	return s.inTx(ctx, "save workout", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workouts (id, owner_id, routine_id, routine_name, status, cursor_exercise, cursor_set, started_at, ended_at, rest_seconds, rest_started_at, rest_duration, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status=excluded.status, cursor_exercise=excluded.cursor_exercise, cursor_set=excluded.cursor_set,
				ended_at=excluded.ended_at, rest_seconds=excluded.rest_seconds, rest_started_at=excluded.rest_started_at,
				rest_duration=excluded.rest_duration, updated_at=excluded.updated_at`,
			w.ID, w.OwnerID, w.RoutineID, w.RoutineName, string(w.Status),
			w.Cursor.Exercise, w.Cursor.Set, w.StartedAt.UTC(), utcPtr(w.EndedAt),
			w.RestSeconds, utcPtr(w.RestStartedAt), w.RestDuration, w.UpdatedAt.UTC(),
		)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM workout_sets WHERE workout_id = ?`, w.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workout_exercises WHERE workout_id = ?`, w.ID); err != nil {
			return err
		}

		for i, ex := range w.Exercises {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO workout_exercises (workout_id, position, exercise_id, name, equipment, muscle_group, rest_seconds) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				w.ID, i, ex.ExerciseID, ex.Name, ex.Equipment, ex.MuscleGroup, ex.RestSeconds,
			); err != nil {
				return fmt.Errorf("exercise %d: %w", i, err)
			}
			for _, set := range ex.Sets {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO workout_sets (workout_id, exercise_pos, set_index, target_reps, target_weight, status, actual_reps, actual_weight, completed_at, note, drop_set, failure, reopened)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					w.ID, i, set.Index, set.TargetReps, set.TargetWeight, string(set.Status),
					set.ActualReps, set.ActualWeight, utcPtr(set.CompletedAt),
					set.Note, boolToInt(set.DropSet), boolToInt(set.Failure), set.Reopened,
				); err != nil {
					return fmt.Errorf("exercise %d set %d: %w", i, set.Index, err)
				}
			}
		}
		return nil
	})
}

const workoutColumns = `id, owner_id, routine_id, routine_name, status, cursor_exercise, cursor_set, started_at, ended_at, rest_seconds, rest_started_at, rest_duration, updated_at`

func scanWorkout(row interface{ Scan(...any) error }) (*models.WorkoutSession, error) {
	w := &models.WorkoutSession{}
	var status string
	var endedAt, restStartedAt sql.NullTime
	if err := row.Scan(&w.ID, &w.OwnerID, &w.RoutineID, &w.RoutineName, &status,
		&w.Cursor.Exercise, &w.Cursor.Set, &w.StartedAt, &endedAt,
		&w.RestSeconds, &restStartedAt, &w.RestDuration, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Status = models.SessionStatus(status)
	if endedAt.Valid {
		w.EndedAt = &endedAt.Time
	}
	if restStartedAt.Valid {
		w.RestStartedAt = &restStartedAt.Time
	}
	return w, nil
}

// LoadActiveWorkout returns the owner's most recent live session, or nil.
func (s *SQLiteStore) LoadActiveWorkout(ctx context.Context, ownerID string) (*models.WorkoutSession, error) {
	w, err := scanWorkout(s.db.QueryRowContext(ctx,
		`SELECT `+workoutColumns+` FROM workouts
		WHERE owner_id = ? AND status IN ('active', 'resting')
		ORDER BY updated_at DESC LIMIT 1`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active workout: %w", err)
	}
	if err := s.loadWorkoutExercises(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *SQLiteStore) GetWorkout(ctx context.Context, id string) (*models.WorkoutSession, error) {
	w, err := scanWorkout(s.db.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workout: %w", err)
	}
	if err := s.loadWorkoutExercises(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWorkouts returns complete sessions, newest first.
func (s *SQLiteStore) ListWorkouts(ctx context.Context, filter WorkoutListFilter) ([]*models.WorkoutSession, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts`
	var conditions []string
	var args []any

	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	var workouts []*models.WorkoutSession
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	for _, w := range workouts {
		if err := s.loadWorkoutExercises(ctx, w); err != nil {
			return nil, err
		}
	}
	return workouts, nil
}

func (s *SQLiteStore) loadWorkoutExercises(ctx context.Context, w *models.WorkoutSession) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, name, equipment, muscle_group, rest_seconds
		FROM workout_exercises WHERE workout_id = ? ORDER BY position`, w.ID)
	if err != nil {
		return fmt.Errorf("list workout exercises: %w", err)
	}
	w.Exercises = nil
	for rows.Next() {
		var ex models.ExerciseSession
		if err := rows.Scan(&ex.ExerciseID, &ex.Name, &ex.Equipment, &ex.MuscleGroup, &ex.RestSeconds); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan workout exercise: %w", err)
		}
		w.Exercises = append(w.Exercises, ex)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return fmt.Errorf("list workout exercises: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT exercise_pos, set_index, target_reps, target_weight, status, actual_reps, actual_weight, completed_at, note, drop_set, failure, reopened
		FROM workout_sets WHERE workout_id = ? ORDER BY exercise_pos, set_index`, w.ID)
	if err != nil {
		return fmt.Errorf("list workout sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var pos int
		var set models.SetRecord
		var status string
		var targetWeight, actualWeight sql.NullFloat64
		var actualReps sql.NullInt64
		var completedAt sql.NullTime
		if err := rows.Scan(&pos, &set.Index, &set.TargetReps, &targetWeight, &status,
			&actualReps, &actualWeight, &completedAt, &set.Note, &set.DropSet, &set.Failure, &set.Reopened); err != nil {
			return fmt.Errorf("scan workout set: %w", err)
		}
		if pos < 0 || pos >= len(w.Exercises) {
			return fmt.Errorf("workout %s: set references missing exercise %d", w.ID, pos)
		}
		set.Status = models.SetStatus(status)
		if targetWeight.Valid {
			set.TargetWeight = &targetWeight.Float64
		}
		if actualWeight.Valid {
			set.ActualWeight = &actualWeight.Float64
		}
		if actualReps.Valid {
			reps := int(actualReps.Int64)
			set.ActualReps = &reps
		}
		if completedAt.Valid {
			set.CompletedAt = &completedAt.Time
		}
		w.Exercises[pos].Sets = append(w.Exercises[pos].Sets, set)
	}
	return rows.Err()
}

func (s *SQLiteStore) DeleteWorkout(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM workouts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	return nil
}

// inTx runs fn in a transaction, committing on success. Errors are wrapped
// with op.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
