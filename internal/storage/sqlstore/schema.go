package sqlstore

// schema is shared by every dialect. {{id}}, {{float}}, {{bool}} and {{text}}
// are replaced with the dialect's column types before it is executed.
// Dates are stored as YYYY-MM-DD strings and timestamps as unix seconds.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id {{id}},
    name VARCHAR(255) NOT NULL,
    identifier VARCHAR(100) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
    id {{id}},
    login VARCHAR(255) NOT NULL DEFAULT '',
    firstname VARCHAR(255) NOT NULL DEFAULT '',
    lastname VARCHAR(255) NOT NULL DEFAULT '',
    anonymous {{bool}} NOT NULL DEFAULT FALSE,
    locked {{bool}} NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS members (
    project_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS issue_statuses (
    id {{id}},
    name VARCHAR(255) NOT NULL,
    is_closed {{bool}} NOT NULL DEFAULT FALSE,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trackers (
    id {{id}},
    name VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS enumerations (
    id {{id}},
    kind VARCHAR(30) NOT NULL,
    name VARCHAR(255) NOT NULL,
    is_default {{bool}} NOT NULL DEFAULT FALSE,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS versions (
    id {{id}},
    project_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'open',
    sharing VARCHAR(20) NOT NULL DEFAULT 'none'
);

CREATE TABLE IF NOT EXISTS issue_categories (
    id {{id}},
    project_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_fields (
    id {{id}},
    name VARCHAR(255) NOT NULL,
    field_format VARCHAR(30) NOT NULL,
    multiple {{bool}} NOT NULL DEFAULT FALSE,
    possible_values {{text}},
    project_id BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS issues (
    id {{id}},
    project_id BIGINT NOT NULL,
    tracker_id BIGINT NOT NULL,
    status_id BIGINT NOT NULL,
    priority_id BIGINT NOT NULL,
    author_id BIGINT NOT NULL,
    assigned_to_id BIGINT NOT NULL DEFAULT 0,
    category_id BIGINT NOT NULL DEFAULT 0,
    fixed_version_id BIGINT NOT NULL DEFAULT 0,
    parent_id BIGINT NOT NULL DEFAULT 0,
    subject VARCHAR(255) NOT NULL,
    description {{text}},
    start_date VARCHAR(10),
    due_date VARCHAR(10),
    done_ratio INTEGER NOT NULL DEFAULT 0,
    estimated_hours {{float}},
    created_on BIGINT NOT NULL,
    updated_on BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_values (
    issue_id BIGINT NOT NULL,
    custom_field_id BIGINT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    value VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS watchers (
    issue_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (issue_id, user_id)
);

CREATE TABLE IF NOT EXISTS journals (
    id {{id}},
    issue_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    notes {{text}},
    created_on BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS issue_relations (
    id {{id}},
    issue_from_id BIGINT NOT NULL,
    issue_to_id BIGINT NOT NULL,
    relation_type VARCHAR(30) NOT NULL,
    UNIQUE (issue_from_id, issue_to_id)
);

CREATE TABLE IF NOT EXISTS time_entries (
    id {{id}},
    project_id BIGINT NOT NULL,
    issue_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    activity_id BIGINT NOT NULL,
    hours {{float}} NOT NULL,
    spent_on VARCHAR(10) NOT NULL,
    comments VARCHAR(1024) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notifications (
    id {{id}},
    issue_id BIGINT NOT NULL,
    event VARCHAR(30) NOT NULL,
    created_on BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS import_in_progress (
    user_id BIGINT NOT NULL PRIMARY KEY,
    filename VARCHAR(255) NOT NULL DEFAULT '',
    encoding VARCHAR(64) NOT NULL DEFAULT '',
    col_sep VARCHAR(8) NOT NULL DEFAULT ',',
    quote_char VARCHAR(8) NOT NULL DEFAULT '"',
    csv_data {{text}},
    created_on BIGINT NOT NULL
);
`
