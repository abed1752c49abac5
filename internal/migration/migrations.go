package migration

// getAllMigrations retorna todas as migrações disponíveis
func getAllMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_task_estimates",
			Up: `
				-- Estimativas de três pontos por issue do Linear
				CREATE TABLE task_estimates (
					issue_id VARCHAR(64) PRIMARY KEY,
					project_id VARCHAR(64) NOT NULL,
					optimistic DOUBLE PRECISION NOT NULL,
					most_likely DOUBLE PRECISION NOT NULL,
					pessimistic DOUBLE PRECISION NOT NULL,
					updated_by VARCHAR(64) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_task_estimates_project ON task_estimates(project_id);
			`,
			Down: `
				DROP TABLE IF EXISTS task_estimates;
			`,
		},
	}
}
