// Package postgres — schema.go: SQL-миграции, встроенные в код для упрощения деплоя.
// Журнал вкладов и журнал аудита защищены правилами от UPDATE/DELETE,
// правила доступа и DAO — от DELETE.
package postgres

var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Members},
	{2, migration002Contributions},
	{3, migration003Scores},
	{4, migration004Access},
	{5, migration005Permissions},
	{6, migration006Audit},
	{7, migration007Admin},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    seq BIGSERIAL UNIQUE,
    user_id VARCHAR(128) PRIMARY KEY,
    display_name VARCHAR(64) NOT NULL DEFAULT '',
    github_login VARCHAR(39) NOT NULL DEFAULT '',
    telegram_id BIGINT UNIQUE,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verified_at TIMESTAMPTZ,
    total_contributions BIGINT NOT NULL DEFAULT 0,
    scores_stale BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_scores_stale ON members(seq) WHERE scores_stale;
`

var migration002Contributions = `
CREATE TABLE IF NOT EXISTS contributions (
    id BIGSERIAL PRIMARY KEY,
    owner_id VARCHAR(128) NOT NULL REFERENCES members(user_id),
    category SMALLINT NOT NULL CHECK (category BETWEEN 0 AND 3),
    impact_score SMALLINT NOT NULL CHECK (impact_score BETWEEN 0 AND 100),
    description TEXT NOT NULL DEFAULT '',
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_contributions_owner ON contributions(owner_id, id);
CREATE OR REPLACE RULE contributions_no_update AS ON UPDATE TO contributions DO INSTEAD NOTHING;
CREATE OR REPLACE RULE contributions_no_delete AS ON DELETE TO contributions DO INSTEAD NOTHING;
`

var migration003Scores = `
CREATE TABLE IF NOT EXISTS scores (
    user_id VARCHAR(128) PRIMARY KEY REFERENCES members(user_id),
    code_score BIGINT NOT NULL DEFAULT 0,
    governance_score BIGINT NOT NULL DEFAULT 0,
    forum_score BIGINT NOT NULL DEFAULT 0,
    identity_score BIGINT NOT NULL DEFAULT 0,
    karma_score INTEGER NOT NULL CHECK (karma_score BETWEEN 0 AND 100),
    trust_factor INTEGER NOT NULL CHECK (trust_factor BETWEEN 0 AND 10000),
    weights_version BIGINT NOT NULL,
    calculated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS scoring_weights (
    version BIGINT PRIMARY KEY,
    code_weight INTEGER NOT NULL CHECK (code_weight BETWEEN 0 AND 10000),
    governance_weight INTEGER NOT NULL CHECK (governance_weight BETWEEN 0 AND 10000),
    forum_weight INTEGER NOT NULL CHECK (forum_weight BETWEEN 0 AND 10000),
    identity_weight INTEGER NOT NULL CHECK (identity_weight BETWEEN 0 AND 10000),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration004Access = `
CREATE TABLE IF NOT EXISTS access_rules (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    min_karma INTEGER NOT NULL CHECK (min_karma BETWEEN 0 AND 100),
    min_trust_factor INTEGER NOT NULL CHECK (min_trust_factor BETWEEN 0 AND 10000),
    requires_verification BOOLEAN NOT NULL DEFAULT FALSE,
    min_contributions BIGINT NOT NULL DEFAULT 0,
    access_level SMALLINT NOT NULL CHECK (access_level BETWEEN 0 AND 3),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS dao_integrations (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    required_access_level SMALLINT NOT NULL CHECK (required_access_level BETWEEN 0 AND 3),
    custom_rule_ids BIGINT[] NOT NULL DEFAULT '{}',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE OR REPLACE RULE access_rules_no_delete AS ON DELETE TO access_rules DO INSTEAD NOTHING;
CREATE OR REPLACE RULE dao_integrations_no_delete AS ON DELETE TO dao_integrations DO INSTEAD NOTHING;
`

var migration005Permissions = `
CREATE TABLE IF NOT EXISTS permission_records (
    user_id VARCHAR(128) PRIMARY KEY REFERENCES members(user_id),
    granted_levels SMALLINT[] NOT NULL DEFAULT '{}',
    last_checked TIMESTAMPTZ NOT NULL,
    access_count BIGINT NOT NULL DEFAULT 0,
    stale BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_permission_records_stale ON permission_records(user_id) WHERE stale;
`

var migration006Audit = `
CREATE TABLE IF NOT EXISTS audit_events (
    seq BIGSERIAL PRIMARY KEY,
    id UUID UNIQUE NOT NULL,
    type VARCHAR(64) NOT NULL,
    user_id VARCHAR(128) NOT NULL DEFAULT '',
    at TIMESTAMPTZ NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id, seq DESC);
CREATE OR REPLACE RULE audit_events_no_update AS ON UPDATE TO audit_events DO INSTEAD NOTHING;
CREATE OR REPLACE RULE audit_events_no_delete AS ON DELETE TO audit_events DO INSTEAD NOTHING;
`

var migration007Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time DESC);
`
