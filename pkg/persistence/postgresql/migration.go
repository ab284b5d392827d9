package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				variables JSONB NOT NULL DEFAULT '[]',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_organization
				ON workflows (organization_id) WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS schedules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL UNIQUE,
				cron VARCHAR(255),
				frequency VARCHAR(64),
				timezone VARCHAR(128) NOT NULL DEFAULT 'UTC',
				start_at TIMESTAMP WITH TIME ZONE,
				end_at TIMESTAMP WITH TIME ZONE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				last_run_at TIMESTAMP WITH TIME ZONE,
				next_run_at TIMESTAMP WITH TIME ZONE,
				metadata JSONB,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_schedules_due
				ON schedules (next_run_at) WHERE is_active;

			CREATE TABLE IF NOT EXISTS execution_log (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255),
				node_id VARCHAR(255),
				severity VARCHAR(16) NOT NULL,
				message TEXT NOT NULL,
				context JSONB,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_execution_log_workflow
				ON execution_log (workflow_id, timestamp DESC);

			CREATE TABLE IF NOT EXISTS action_templates (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL,
				channel VARCHAR(16) NOT NULL,
				subject TEXT,
				body TEXT NOT NULL,
				is_locked BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS pending_approvals (
				token VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				execution_id VARCHAR(255),
				node_id VARCHAR(255) NOT NULL,
				approvers JSONB NOT NULL DEFAULT '[]',
				scope JSONB,
				status VARCHAR(16) NOT NULL DEFAULT 'pending',
				decided_by VARCHAR(255),
				expires_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_pending_approvals_workflow
				ON pending_approvals (workflow_id) WHERE status = 'pending';
		`,
	}
}
