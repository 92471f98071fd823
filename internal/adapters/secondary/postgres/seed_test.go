package postgres

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// nextID hands out primary keys so tests sharing the container never collide.
var nextID atomic.Int64

func init() {
	nextID.Store(1000)
}

func newID() int64 {
	return nextID.Add(1)
}

// newSourceSystem returns an origin tag unique to the calling test.
func newSourceSystem() string {
	return "src-" + uuid.NewString()[:8]
}

func seedEmployee(t *testing.T, ctx context.Context, first, last, email string, status int, jobTitle string) int64 {
	t.Helper()
	id := newID()
	var titleID *int64
	if jobTitle != "" {
		tid := newID()
		_, err := testPool.Exec(ctx, `INSERT INTO ohrm_job_title (id, job_title) VALUES ($1, $2)`, tid, jobTitle)
		require.NoError(t, err)
		titleID = &tid
	}
	_, err := testPool.Exec(ctx, `
INSERT INTO hs_hr_employee (emp_number, emp_firstname, emp_lastname, emp_status, job_title_code, emp_work_email)
VALUES ($1, $2, $3, $4, $5, $6)`, id, first, last, status, titleID, email)
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T, ctx context.Context, src, username, email string) int64 {
	t.Helper()
	id := newID()
	_, err := testPool.Exec(ctx, `
INSERT INTO mantis_user_table (id, username, realname, email, source_system)
VALUES ($1, $2, $2, $3, $4)`, id, username, email, src)
	require.NoError(t, err)
	return id
}

func seedProject(t *testing.T, ctx context.Context, src, name string) int64 {
	t.Helper()
	id := newID()
	_, err := testPool.Exec(ctx, `
INSERT INTO mantis_project_table (id, name, source_system) VALUES ($1, $2, $3)`, id, name, src)
	require.NoError(t, err)
	return id
}

type taskSeed struct {
	src       string
	projectID int64
	handlerID int64
	status    int
	summary   string
	eta       *string
	updated   time.Time
}

func seedTask(t *testing.T, ctx context.Context, s taskSeed) int64 {
	t.Helper()
	id := newID()
	if s.updated.IsZero() {
		s.updated = time.Now()
	}
	_, err := testPool.Exec(ctx, `
INSERT INTO mantis_bug_table (id, project_id, handler_id, status, summary, source_system, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, id, s.projectID, s.handlerID, s.status, s.summary, s.src, s.updated)
	require.NoError(t, err)
	if s.eta != nil {
		seedField(t, ctx, s.src, DefaultCustomFields().ETA, id, *s.eta)
	}
	return id
}

func seedField(t *testing.T, ctx context.Context, src string, fieldID int32, bugID int64, value string) {
	t.Helper()
	_, err := testPool.Exec(ctx, `
INSERT INTO mantis_custom_field_string_table (field_id, bug_id, value, source_system)
VALUES ($1, $2, $3, $4)`, fieldID, bugID, value, src)
	require.NoError(t, err)
}

func seedNote(t *testing.T, ctx context.Context, src string, bugID int64, minutes int) {
	t.Helper()
	_, err := testPool.Exec(ctx, `
INSERT INTO mantis_bugnote_table (bug_id, time_tracking, source_system)
VALUES ($1, $2, $3)`, bugID, minutes, src)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }
