package sqlstore

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	_ "github.com/lib/pq"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/datastore"
	"github.com/solharness/solharness/diff"
	"github.com/solharness/solharness/statestore"
)

const (
	query_PROJECT_BY_NAME = `
		SELECT name, created_at
		FROM projects
		WHERE name = $1`
	query_ADD_PROJECT = `
		INSERT INTO projects (name, created_at)
		VALUES ($1, $2)`

	query_ENVIRONMENT_BY_KEY = `
		SELECT project, name, kind, fork_slot, created_at
		FROM environments
		WHERE project = $1 AND name = $2`
	query_ENVIRONMENTS_BY_PROJECT = `
		SELECT project, name, kind, fork_slot, created_at
		FROM environments
		WHERE project = $1`
	query_ADD_ENVIRONMENT = `
		INSERT INTO environments (project, name, kind, fork_slot, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	query_UPDATE_ENVIRONMENT = `
		UPDATE environments SET kind = $3, fork_slot = $4, created_at = $5
		WHERE project = $1 AND name = $2`

	query_TX_BY_KEY = `
		SELECT project, environment, signature, slot, status, submitted_at, updated_at
		FROM transactions
		WHERE project = $1 AND environment = $2 AND signature = $3`
	query_ADD_TX = `
		INSERT INTO transactions (project, environment, signature, slot, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	query_UPDATE_TX = `
		UPDATE transactions SET slot = $4, status = $5, submitted_at = $6, updated_at = $7
		WHERE project = $1 AND environment = $2 AND signature = $3`
	query_UPDATE_TX_STATUS = `
		UPDATE transactions SET status = $4, updated_at = $5
		WHERE project = $1 AND environment = $2 AND signature = $3`

	query_PLAN_BY_KEY = `
		SELECT name, version, status, document, created_at, updated_at
		FROM test_plans
		WHERE name = $1 AND version = $2`
	query_ADD_PLAN = `
		INSERT INTO test_plans (name, version, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	query_UPDATE_PLAN = `
		UPDATE test_plans SET status = $3, document = $4, created_at = $5, updated_at = $6
		WHERE name = $1 AND version = $2`

	query_EXECUTION_BY_ID = `
		SELECT id, plan_name, plan_version, project, environment, status,
			total_steps, completed_steps, started_at, completed_at
		FROM test_executions
		WHERE id = $1`
	query_ADD_EXECUTION = `
		INSERT INTO test_executions (id, plan_name, plan_version, project, environment, status,
			total_steps, completed_steps, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	query_UPDATE_EXECUTION = `
		UPDATE test_executions SET plan_name = $2, plan_version = $3, project = $4,
			environment = $5, status = $6, total_steps = $7, completed_steps = $8,
			started_at = $9, completed_at = $10
		WHERE id = $1`

	query_STEPS_BY_EXECUTION = `
		SELECT execution_id, phase, step_order, name, step_type, status,
			started_at, execution_time_ms, result, error_message
		FROM test_steps
		WHERE execution_id = $1`
	query_ADD_STEP = `
		INSERT INTO test_steps (execution_id, phase, step_order, name, step_type, status,
			started_at, execution_time_ms, result, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	query_DELETE_STEPS = `
		DELETE FROM test_steps
		WHERE execution_id = $1`

	query_ACCOUNT_BY_KEY = `
		SELECT lamports, owner, data, slot_updated, is_frozen, updated_at
		FROM accounts
		WHERE project = $1 AND environment = $2 AND address = $3`
	query_ADD_ACCOUNT = `
		INSERT INTO accounts (project, environment, address, lamports, owner, data,
			slot_updated, is_frozen, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	query_UPDATE_ACCOUNT = `
		UPDATE accounts SET lamports = $4, owner = $5, data = $6, slot_updated = $7, updated_at = $8
		WHERE project = $1 AND environment = $2 AND address = $3`
	query_FREEZE_ACCOUNT = `
		UPDATE accounts SET is_frozen = $4, updated_at = $5
		WHERE project = $1 AND environment = $2 AND address = $3`
	query_DELETE_ACCOUNT = `
		DELETE FROM accounts
		WHERE project = $1 AND environment = $2 AND address = $3`

	query_ADD_HISTORY_ENTRY = `
		INSERT INTO account_state_history (id, project, environment, address, slot,
			lamports, owner, data, change_set, tx_signature, operation, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	query_HISTORY_BY_ACCOUNT = `
		SELECT id, slot, lamports, owner, data, change_set, tx_signature, operation, recorded_at
		FROM account_state_history
		WHERE project = $1 AND environment = $2 AND address = $3`
)

// Store persists harness records through one SQL connection. Writes are
// serialized behind one mutex: the controller carries a single open
// transaction at a time.
type Store struct {
	mu sync.Mutex
	db *dbController
}

// Store implements the statestore journal.
var _ statestore.Journal = &Store{}

// New creates a Store over an open database connection.
func New(db *sql.DB) *Store {
	return &Store{db: newDbController(db)}
}

// Open connects using the given driver and DSN. The postgres driver is
// registered by import.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return New(db), nil
}

// Migrate creates every table the store needs.
func (s *Store) Migrate() error {
	for _, stmt := range schemaStatements {
		if err := s.db.Fixture(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	return nil
}

// withTransaction runs fn inside a transaction, rolling back on error.
func (s *Store) withTransaction(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = s.db.Rollback()

		return err
	}

	return s.db.Commit()
}

// SaveProject inserts one project record. Projects are immutable once
// registered, saving an existing name is a no-op.
func (s *Store) SaveProject(record datastore.ProjectRecord) error {
	return s.withTransaction(func() error {
		exists, err := s.projectExists(record.Key())
		if err != nil || exists {
			return err
		}

		_, err = s.db.Exec(query_ADD_PROJECT, record.Name, encodeTime(record.CreatedAt))

		return err
	})
}

// GetProject returns one project record by key.
func (s *Store) GetProject(key datastore.ProjectKey) (datastore.ProjectRecord, error) {
	rows, err := s.db.Query(query_PROJECT_BY_NAME, key.Name())
	if err != nil {
		return datastore.ProjectRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return datastore.ProjectRecord{}, datastore.ErrProjectNotFound
	}

	record := datastore.ProjectRecord{}
	var createdAt string
	if err := rows.Scan(&record.Name, &createdAt); err != nil {
		return datastore.ProjectRecord{}, err
	}
	if record.CreatedAt, err = decodeTime(createdAt); err != nil {
		return datastore.ProjectRecord{}, err
	}

	return record, nil
}

// SaveEnvironment inserts or updates one environment record.
func (s *Store) SaveEnvironment(record datastore.EnvironmentRecord) error {
	return s.withTransaction(func() error {
		exists, err := s.environmentExists(record.Key())
		if err != nil {
			return err
		}

		var forkSlot sql.NullInt64
		if record.ForkSlot != nil {
			forkSlot = sql.NullInt64{Int64: int64(*record.ForkSlot), Valid: true}
		}

		args := []any{
			record.Project, record.Name, record.Kind, forkSlot,
			encodeTime(record.CreatedAt),
		}
		if exists {
			_, err = s.db.Exec(query_UPDATE_ENVIRONMENT, args...)
		} else {
			_, err = s.db.Exec(query_ADD_ENVIRONMENT, args...)
		}

		return err
	})
}

// GetEnvironment returns one environment record by key.
func (s *Store) GetEnvironment(key datastore.EnvironmentKey) (datastore.EnvironmentRecord, error) {
	rows, err := s.db.Query(query_ENVIRONMENT_BY_KEY, key.Project(), key.Name())
	if err != nil {
		return datastore.EnvironmentRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return datastore.EnvironmentRecord{}, datastore.ErrEnvironmentNotFound
	}

	return scanEnvironment(rows)
}

// ListEnvironments returns every environment record of one project.
func (s *Store) ListEnvironments(project string) ([]datastore.EnvironmentRecord, error) {
	rows, err := s.db.Query(query_ENVIRONMENTS_BY_PROJECT, project)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var records []datastore.EnvironmentRecord
	for rows.Next() {
		record, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// SaveTransaction inserts or updates one transaction record.
func (s *Store) SaveTransaction(record datastore.TransactionRecord) error {
	return s.withTransaction(func() error {
		exists, err := s.transactionExists(record.Key())
		if err != nil {
			return err
		}

		args := []any{
			record.Project, record.Environment, record.Signature.String(),
			int64(record.Slot), string(record.Status),
			encodeTime(record.SubmittedAt), encodeNullableTime(record.UpdatedAt),
		}
		if exists {
			_, err = s.db.Exec(query_UPDATE_TX, args...)
		} else {
			_, err = s.db.Exec(query_ADD_TX, args...)
		}

		return err
	})
}

// GetTransaction returns one transaction record by key.
func (s *Store) GetTransaction(key datastore.TransactionKey) (datastore.TransactionRecord, error) {
	rows, err := s.db.Query(query_TX_BY_KEY, key.Project(), key.Environment(), key.Signature().String())
	if err != nil {
		return datastore.TransactionRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return datastore.TransactionRecord{}, datastore.ErrTransactionNotFound
	}

	return scanTransaction(rows)
}

// UpdateTransactionStatus moves a stored transaction's status forward,
// enforcing the monotonic lifecycle inside one database transaction.
func (s *Store) UpdateTransactionStatus(key datastore.TransactionKey, status datastore.TransactionStatus) error {
	return s.withTransaction(func() error {
		record, err := s.GetTransaction(key)
		if err != nil {
			return err
		}
		if !record.Status.CanTransition(status) {
			return datastore.ErrInvalidStatusTransition
		}

		_, err = s.db.Exec(query_UPDATE_TX_STATUS,
			key.Project(), key.Environment(), key.Signature().String(),
			string(status), encodeTime(time.Now().UTC()))

		return err
	})
}

// SavePlan inserts or updates one plan record.
func (s *Store) SavePlan(record datastore.PlanRecord) error {
	return s.withTransaction(func() error {
		exists, err := s.planExists(record.Key())
		if err != nil {
			return err
		}

		args := []any{
			record.Name, record.Version, record.Status, string(record.Document),
			encodeNullableTime(record.CreatedAt), encodeNullableTime(record.UpdatedAt),
		}
		if exists {
			_, err = s.db.Exec(query_UPDATE_PLAN, args...)
		} else {
			_, err = s.db.Exec(query_ADD_PLAN, args...)
		}

		return err
	})
}

// GetPlan returns one plan record by key.
func (s *Store) GetPlan(key datastore.PlanKey) (datastore.PlanRecord, error) {
	rows, err := s.db.Query(query_PLAN_BY_KEY, key.Name(), key.Version())
	if err != nil {
		return datastore.PlanRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return datastore.PlanRecord{}, datastore.ErrPlanNotFound
	}

	record := datastore.PlanRecord{}
	var document, createdAt, updatedAt sql.NullString
	if err := rows.Scan(&record.Name, &record.Version, &record.Status, &document, &createdAt, &updatedAt); err != nil {
		return datastore.PlanRecord{}, err
	}
	if document.Valid {
		record.Document = json.RawMessage(document.String)
	}
	if record.CreatedAt, err = decodeNullableTime(createdAt); err != nil {
		return datastore.PlanRecord{}, err
	}
	if record.UpdatedAt, err = decodeNullableTime(updatedAt); err != nil {
		return datastore.PlanRecord{}, err
	}

	return record, nil
}

// SaveExecution atomically inserts or updates one execution record together
// with all of its step records.
func (s *Store) SaveExecution(execution datastore.ExecutionRecord, steps []datastore.StepRecord) error {
	return s.withTransaction(func() error {
		exists, err := s.executionExists(execution.ID)
		if err != nil {
			return err
		}

		args := []any{
			execution.ID, execution.PlanName, execution.PlanVersion,
			execution.Project, execution.Environment, execution.Status,
			int64(execution.TotalSteps), int64(execution.CompletedSteps),
			encodeTime(execution.StartedAt), encodeNullableTimePtr(execution.CompletedAt),
		}
		if exists {
			if _, err = s.db.Exec(query_UPDATE_EXECUTION, args...); err != nil {
				return err
			}
		} else {
			if _, err = s.db.Exec(query_ADD_EXECUTION, args...); err != nil {
				return err
			}
		}

		// Steps are replaced wholesale, the execution record is the source of
		// truth for progress.
		if _, err = s.db.Exec(query_DELETE_STEPS, execution.ID); err != nil {
			return err
		}
		for _, step := range steps {
			_, err = s.db.Exec(query_ADD_STEP,
				step.ExecutionID, step.Phase, int64(step.Order), step.Name,
				step.Type, step.Status, encodeNullableTimePtr(step.StartedAt),
				step.ExecutionTimeMS, step.Result, step.ErrorMessage)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// GetExecution returns one execution record by ID.
func (s *Store) GetExecution(id string) (datastore.ExecutionRecord, error) {
	rows, err := s.db.Query(query_EXECUTION_BY_ID, id)
	if err != nil {
		return datastore.ExecutionRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return datastore.ExecutionRecord{}, datastore.ErrExecutionNotFound
	}

	record := datastore.ExecutionRecord{}
	var totalSteps, completedSteps int64
	var startedAt string
	var completedAt sql.NullString
	err = rows.Scan(&record.ID, &record.PlanName, &record.PlanVersion,
		&record.Project, &record.Environment, &record.Status,
		&totalSteps, &completedSteps, &startedAt, &completedAt)
	if err != nil {
		return datastore.ExecutionRecord{}, err
	}
	record.TotalSteps = int(totalSteps)
	record.CompletedSteps = int(completedSteps)
	if record.StartedAt, err = decodeTime(startedAt); err != nil {
		return datastore.ExecutionRecord{}, err
	}
	if record.CompletedAt, err = decodeNullableTimePtr(completedAt); err != nil {
		return datastore.ExecutionRecord{}, err
	}

	return record, nil
}

// ListSteps returns every step record of one execution.
func (s *Store) ListSteps(executionID string) ([]datastore.StepRecord, error) {
	rows, err := s.db.Query(query_STEPS_BY_EXECUTION, executionID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var records []datastore.StepRecord
	for rows.Next() {
		record := datastore.StepRecord{}
		var order int64
		var name, startedAt, result, errorMessage sql.NullString
		err = rows.Scan(&record.ExecutionID, &record.Phase, &order, &name,
			&record.Type, &record.Status, &startedAt, &record.ExecutionTimeMS, &result, &errorMessage)
		if err != nil {
			return nil, err
		}
		record.Order = int(order)
		record.Name = name.String
		record.Result = result.String
		record.ErrorMessage = errorMessage.String
		if record.StartedAt, err = decodeNullableTimePtr(startedAt); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// SaveAccountState appends one account history entry and brings the current
// account row in line with it, atomically. A nil snapshot removes the
// current row: the account does not exist at that point.
func (s *Store) SaveAccountState(entry statestore.HistoryEntry) error {
	changeJSON, err := json.Marshal(entry.Change)
	if err != nil {
		return fmt.Errorf("encoding change set: %w", err)
	}

	var lamports sql.NullInt64
	var owner, data sql.NullString
	if entry.Snapshot != nil {
		lamports = sql.NullInt64{Int64: int64(entry.Snapshot.Lamports), Valid: true}
		owner = sql.NullString{String: entry.Snapshot.Owner.String(), Valid: true}
		data = sql.NullString{String: base64.StdEncoding.EncodeToString(entry.Snapshot.Data), Valid: true}
	}

	var signature sql.NullString
	if entry.TxSignature != nil {
		signature = sql.NullString{String: entry.TxSignature.String(), Valid: true}
	}

	return s.withTransaction(func() error {
		_, err := s.db.Exec(query_ADD_HISTORY_ENTRY,
			entry.ID, entry.Key.Project, entry.Key.Environment, entry.Key.Address.String(),
			int64(entry.Slot), lamports, owner, data, string(changeJSON), signature,
			string(entry.Operation), encodeTime(entry.RecordedAt))
		if err != nil {
			return err
		}

		return s.saveCurrentAccount(entry)
	})
}

// saveCurrentAccount upserts or deletes the accounts row for one history
// entry. Runs inside the caller's transaction.
func (s *Store) saveCurrentAccount(entry statestore.HistoryEntry) error {
	key := entry.Key
	if entry.Snapshot == nil {
		_, err := s.db.Exec(query_DELETE_ACCOUNT, key.Project, key.Environment, key.Address.String())

		return err
	}

	exists, err := s.accountExists(key)
	if err != nil {
		return err
	}

	snap := entry.Snapshot
	data := base64.StdEncoding.EncodeToString(snap.Data)
	if exists {
		_, err = s.db.Exec(query_UPDATE_ACCOUNT,
			key.Project, key.Environment, key.Address.String(),
			int64(snap.Lamports), snap.Owner.String(), data,
			int64(entry.Slot), encodeTime(entry.RecordedAt))

		return err
	}

	_, err = s.db.Exec(query_ADD_ACCOUNT,
		key.Project, key.Environment, key.Address.String(),
		int64(snap.Lamports), snap.Owner.String(), data,
		int64(entry.Slot), int64(0), encodeTime(entry.RecordedAt))

	return err
}

// SetAccountFrozen flips the durable frozen flag of one account.
func (s *Store) SetAccountFrozen(key account.Key, frozen bool) error {
	return s.withTransaction(func() error {
		exists, err := s.accountExists(key)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", statestore.ErrNotFound, key)
		}

		var flag int64
		if frozen {
			flag = 1
		}
		_, err = s.db.Exec(query_FREEZE_ACCOUNT,
			key.Project, key.Environment, key.Address.String(),
			flag, encodeTime(time.Now().UTC()))

		return err
	})
}

// AccountRecord is the durable current state of one account.
type AccountRecord struct {
	Key         account.Key
	Lamports    uint64
	Owner       solana.PublicKey
	Data        []byte
	SlotUpdated uint64
	IsFrozen    bool
	UpdatedAt   time.Time
}

// GetAccount returns the current durable state of one account.
func (s *Store) GetAccount(key account.Key) (AccountRecord, error) {
	rows, err := s.db.Query(query_ACCOUNT_BY_KEY, key.Project, key.Environment, key.Address.String())
	if err != nil {
		return AccountRecord{}, err
	}
	defer closeRows(rows)

	if !rows.Next() {
		return AccountRecord{}, fmt.Errorf("%w: %s", statestore.ErrNotFound, key)
	}

	record := AccountRecord{Key: key}
	var lamports, slotUpdated, frozen int64
	var owner, updatedAt string
	var data sql.NullString
	if err := rows.Scan(&lamports, &owner, &data, &slotUpdated, &frozen, &updatedAt); err != nil {
		return AccountRecord{}, err
	}

	record.Lamports = uint64(lamports)
	record.SlotUpdated = uint64(slotUpdated)
	record.IsFrozen = frozen != 0
	if record.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return AccountRecord{}, fmt.Errorf("decoding owner: %w", err)
	}
	if data.Valid && data.String != "" {
		raw, err := base64.StdEncoding.DecodeString(data.String)
		if err != nil {
			return AccountRecord{}, fmt.Errorf("decoding account data: %w", err)
		}
		record.Data = raw
	}
	if record.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return AccountRecord{}, err
	}

	return record, nil
}

func (s *Store) accountExists(key account.Key) (bool, error) {
	rows, err := s.db.Query(query_ACCOUNT_BY_KEY, key.Project, key.Environment, key.Address.String())
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

// AccountHistory returns every stored history entry for one account, in
// insertion order.
func (s *Store) AccountHistory(key account.Key) ([]statestore.HistoryEntry, error) {
	rows, err := s.db.Query(query_HISTORY_BY_ACCOUNT, key.Project, key.Environment, key.Address.String())
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var entries []statestore.HistoryEntry
	for rows.Next() {
		entry := statestore.HistoryEntry{Key: key}
		var slot int64
		var lamports sql.NullInt64
		var owner, data, changeJSON, signature sql.NullString
		var operation, recordedAt string
		err = rows.Scan(&entry.ID, &slot, &lamports, &owner, &data, &changeJSON,
			&signature, &operation, &recordedAt)
		if err != nil {
			return nil, err
		}
		entry.Slot = uint64(slot)
		entry.Operation = statestore.OperationType(operation)

		if lamports.Valid {
			snap, err := decodeSnapshot(key, uint64(slot), lamports.Int64, owner.String, data.String)
			if err != nil {
				return nil, err
			}
			entry.Snapshot = snap
		}
		if changeJSON.Valid && changeJSON.String != "" {
			var change diff.ChangeSet
			if err := json.Unmarshal([]byte(changeJSON.String), &change); err != nil {
				return nil, fmt.Errorf("decoding change set: %w", err)
			}
			entry.Change = change
		}
		if signature.Valid {
			sig, err := solana.SignatureFromBase58(signature.String)
			if err != nil {
				return nil, fmt.Errorf("decoding signature: %w", err)
			}
			entry.TxSignature = &sig
		}
		if entry.RecordedAt, err = decodeTime(recordedAt); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Store) projectExists(key datastore.ProjectKey) (bool, error) {
	rows, err := s.db.Query(query_PROJECT_BY_NAME, key.Name())
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

func (s *Store) environmentExists(key datastore.EnvironmentKey) (bool, error) {
	rows, err := s.db.Query(query_ENVIRONMENT_BY_KEY, key.Project(), key.Name())
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

func (s *Store) transactionExists(key datastore.TransactionKey) (bool, error) {
	rows, err := s.db.Query(query_TX_BY_KEY, key.Project(), key.Environment(), key.Signature().String())
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

func (s *Store) planExists(key datastore.PlanKey) (bool, error) {
	rows, err := s.db.Query(query_PLAN_BY_KEY, key.Name(), key.Version())
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

func (s *Store) executionExists(id string) (bool, error) {
	rows, err := s.db.Query(query_EXECUTION_BY_ID, id)
	if err != nil {
		return false, err
	}
	defer closeRows(rows)

	return rows.Next(), nil
}

func scanEnvironment(rows *sql.Rows) (datastore.EnvironmentRecord, error) {
	record := datastore.EnvironmentRecord{}
	var forkSlot sql.NullInt64
	var createdAt string
	err := rows.Scan(&record.Project, &record.Name, &record.Kind, &forkSlot, &createdAt)
	if err != nil {
		return datastore.EnvironmentRecord{}, err
	}

	if forkSlot.Valid {
		slot := uint64(forkSlot.Int64)
		record.ForkSlot = &slot
	}
	if record.CreatedAt, err = decodeTime(createdAt); err != nil {
		return datastore.EnvironmentRecord{}, err
	}

	return record, nil
}

func scanTransaction(rows *sql.Rows) (datastore.TransactionRecord, error) {
	record := datastore.TransactionRecord{}
	var signature, submittedAt string
	var slot int64
	var status string
	var updatedAt sql.NullString
	err := rows.Scan(&record.Project, &record.Environment, &signature, &slot,
		&status, &submittedAt, &updatedAt)
	if err != nil {
		return datastore.TransactionRecord{}, err
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return datastore.TransactionRecord{}, fmt.Errorf("decoding signature: %w", err)
	}
	record.Signature = sig
	record.Slot = uint64(slot)
	record.Status = datastore.TransactionStatus(status)
	if record.SubmittedAt, err = decodeTime(submittedAt); err != nil {
		return datastore.TransactionRecord{}, err
	}
	if record.UpdatedAt, err = decodeNullableTime(updatedAt); err != nil {
		return datastore.TransactionRecord{}, err
	}

	return record, nil
}

func decodeSnapshot(key account.Key, slot uint64, lamports int64, owner, data string) (*account.Snapshot, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("decoding owner: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding account data: %w", err)
	}
	if len(raw) == 0 {
		raw = nil
	}

	return &account.Snapshot{
		Address:  key.Address,
		Lamports: uint64(lamports),
		Owner:    ownerKey,
		Data:     raw,
		Slot:     slot,
	}, nil
}

func closeRows(rows *sql.Rows) {
	if rows != nil {
		_ = rows.Close()
	}
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeNullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}

	return sql.NullString{String: encodeTime(t), Valid: true}
}

func encodeNullableTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}

	return encodeNullableTime(*t)
}

func decodeTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding timestamp %q: %w", raw, err)
	}

	return t, nil
}

func decodeNullableTime(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}

	return decodeTime(raw.String)
}

func decodeNullableTimePtr(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := decodeTime(raw.String)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
