package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ipstudio/internal/domain"
	"ipstudio/internal/sqlinline"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type fakeExecutor struct {
	rows    map[string]func(dest ...any) error
	execTag pgconn.CommandTag
	execErr error
	queries []string
	args    [][]any
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.execTag, f.execErr
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return simpleRow{scan: f.rows[query]}
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported in fake executor")
}

func taskRow(id string, status domain.TaskStatus, resultData string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[2].(*string) = string(domain.TaskTypeMerchKeychain)
		*dest[3].(*string) = string(status)
		*dest[4].(*string) = "keychain mockup"
		if resultData != "" {
			*dest[7].(*[]byte) = []byte(resultData)
		}
		*dest[11].(*time.Time) = time.Unix(0, 0).UTC()
		*dest[12].(*time.Time) = time.Unix(0, 0).UTC()
		return nil
	}
}

func TestGetByIDDecodesResultData(t *testing.T) {
	db := &fakeExecutor{rows: map[string]func(dest ...any) error{
		sqlinline.QSelectTaskByID: taskRow("t1", domain.TaskStatusCompleted, `{"model_url":"https://x/m.glb"}`),
	}}
	task, err := NewTaskRepository(db).GetByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted || task.ModelURL() != "https://x/m.glb" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestGetByIDMapsMissingRows(t *testing.T) {
	db := &fakeExecutor{rows: map[string]func(dest ...any) error{}}
	_, err := NewTaskRepository(db).GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	db.rows[sqlinline.QSelectTaskByID] = func(dest ...any) error {
		return &pgconn.PgError{Code: pgInvalidTextRepresentation, Message: "invalid input syntax for type uuid"}
	}
	_, err = NewTaskRepository(db).GetByID(context.Background(), "not-a-uuid")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for malformed id", err)
	}
}

func TestUpdateByIDReportsConflict(t *testing.T) {
	db := &fakeExecutor{rows: map[string]func(dest ...any) error{
		sqlinline.QSelectTaskByID: taskRow("t1", domain.TaskStatusProcessing, ""),
	}}
	repo := NewTaskRepository(db)
	_, err := repo.UpdateByID(context.Background(), "t1", domain.TaskPatch{
		ExpectStatus: domain.TaskStatusFailed,
		Status:       domain.TaskStatusPending,
	})
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("err = %v, want ErrStatusConflict", err)
	}
	if len(db.args) == 0 || db.args[0][5] != "failed" {
		t.Fatalf("expected status precondition to be passed, got %#v", db.args)
	}
}

func TestUpdateByIDUnknownTask(t *testing.T) {
	db := &fakeExecutor{rows: map[string]func(dest ...any) error{}}
	_, err := NewTaskRepository(db).UpdateByID(context.Background(), "t1", domain.TaskPatch{Status: domain.TaskStatusProcessing})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateByIDEncodesResultData(t *testing.T) {
	db := &fakeExecutor{rows: map[string]func(dest ...any) error{
		sqlinline.QUpdateTaskByID: taskRow("t1", domain.TaskStatusCompleted, `{"model_url":"m"}`),
	}}
	_, err := NewTaskRepository(db).UpdateByID(context.Background(), "t1", domain.TaskPatch{
		ExpectStatus: domain.TaskStatusProcessing,
		Status:       domain.TaskStatusCompleted,
		ResultData:   map[string]any{"model_url": "m"},
	})
	if err != nil {
		t.Fatalf("UpdateByID error: %v", err)
	}
	if got := string(db.args[0][3].([]byte)); got != `{"model_url":"m"}` {
		t.Fatalf("result_data arg = %s", got)
	}
}

func TestMergeMerchandiseURLMissingCharacter(t *testing.T) {
	db := &fakeExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewCharacterRepository(db).MergeMerchandiseURL(context.Background(), "c1", "keychain", "https://x/k.png")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if db.queries[0] != sqlinline.QMergeCharacterMerchandise {
		t.Fatalf("unexpected query")
	}
	if db.args[0][1] != "keychain" {
		t.Fatalf("key arg = %v", db.args[0][1])
	}
}

func TestSetViewURLRoutesBySide(t *testing.T) {
	db := &fakeExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewCharacterRepository(db)
	if err := repo.SetViewURL(context.Background(), "c1", domain.ViewSideBack, "https://x/b.png"); err != nil {
		t.Fatalf("SetViewURL error: %v", err)
	}
	if db.queries[0] != sqlinline.QSetCharacterBackView {
		t.Fatalf("expected back view query")
	}
	if err := repo.SetViewURL(context.Background(), "c1", "top", "u"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
