package balance

// Schema returns the DDL owned by the balance store, in execution order. The
// partial unique indexes are what make duplicate postings impossible for the
// kinds keyed by project or contribution, even across concurrent writers.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS balance_transactions (
			id uuid PRIMARY KEY,
			project_id uuid,
			contribution_id uuid,
			user_id uuid NOT NULL,
			event_kind text NOT NULL,
			amount numeric(15,2) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS balance_transactions_user_idx
			ON balance_transactions (user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS balance_transactions_project_event_key
			ON balance_transactions (event_kind, project_id)
			WHERE event_kind IN (
				'successful_project_pledged',
				'catarse_project_service_fee',
				'irrf_tax_project')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS balance_transactions_contribution_event_key
			ON balance_transactions (event_kind, contribution_id)
			WHERE event_kind IN (
				'project_contribution_confirmed_after_finished',
				'catarse_contribution_fee',
				'contribution_chargedback',
				'contribution_refund',
				'balance_expired')`,
		`CREATE INDEX IF NOT EXISTS balance_transactions_kind_created_idx
			ON balance_transactions (event_kind, created_at)`,
	}
}
