package sqlstore

const (
	schemaProjects = `
		CREATE TABLE projects (
			name        TEXT not null,
			created_at  TEXT not null,

			PRIMARY KEY(name)
		);`

	schemaEnvironments = `
		CREATE TABLE environments (
			project     TEXT not null,
			name        TEXT not null,
			kind        TEXT not null,
			fork_slot   BIGINT,
			created_at  TEXT not null,

			PRIMARY KEY(project, name)
		);`

	schemaTransactions = `
		CREATE TABLE transactions (
			project       TEXT not null,
			environment   TEXT not null,
			signature     TEXT not null,
			slot          BIGINT not null,
			status        TEXT not null,
			submitted_at  TEXT not null,
			updated_at    TEXT,

			PRIMARY KEY(project, environment, signature)
		);`

	schemaPlans = `
		CREATE TABLE test_plans (
			name        TEXT not null,
			version     TEXT not null,
			status      TEXT not null,
			document    TEXT,
			created_at  TEXT,
			updated_at  TEXT,

			PRIMARY KEY(name, version)
		);`

	schemaExecutions = `
		CREATE TABLE test_executions (
			id              TEXT not null,
			plan_name       TEXT not null,
			plan_version    TEXT not null,
			project         TEXT not null,
			environment     TEXT not null,
			status          TEXT not null,
			total_steps     BIGINT not null,
			completed_steps BIGINT not null,
			started_at      TEXT not null,
			completed_at    TEXT,

			PRIMARY KEY(id)
		);`

	schemaSteps = `
		CREATE TABLE test_steps (
			execution_id      TEXT not null,
			phase             TEXT not null,
			step_order        BIGINT not null,
			name              TEXT,
			step_type         TEXT not null,
			status            TEXT not null,
			started_at        TEXT,
			execution_time_ms BIGINT not null,
			result            TEXT,
			error_message     TEXT,

			PRIMARY KEY(execution_id, phase, step_order)
		);`

	schemaAccounts = `
		CREATE TABLE accounts (
			project      TEXT not null,
			environment  TEXT not null,
			address      TEXT not null,
			lamports     BIGINT not null,
			owner        TEXT not null,
			data         TEXT,
			slot_updated BIGINT not null,
			is_frozen    BIGINT not null,
			updated_at   TEXT not null,

			PRIMARY KEY(project, environment, address)
		);`

	schemaAccountStateHistory = `
		CREATE TABLE account_state_history (
			id           TEXT not null,
			project      TEXT not null,
			environment  TEXT not null,
			address      TEXT not null,
			slot         BIGINT not null,
			lamports     BIGINT,
			owner        TEXT,
			data         TEXT,
			change_set   TEXT,
			tx_signature TEXT,
			operation    TEXT not null,
			recorded_at  TEXT not null,

			PRIMARY KEY(id)
		);`
)

// schemaStatements lists every table creation statement in dependency order.
var schemaStatements = []string{
	schemaProjects,
	schemaEnvironments,
	schemaTransactions,
	schemaPlans,
	schemaExecutions,
	schemaSteps,
	schemaAccounts,
	schemaAccountStateHistory,
}
