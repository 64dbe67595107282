package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var sessionSQLCols = []string{"id", "patient_id", "doc_id", "stage", "state", "priority", "complaint",
	"notes", "treatment_plan", "doc_updated_at", "state_updated_at", "completed_at", "created_at", "updated_at"}

// The guard read must happen under the row lock inside the transition's
// transaction, so concurrent transitions against one session serialize.
func TestTransition_LocksRowInsideTransaction(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	svc := NewService(conn, NewRepo(conn), DefaultWorkflow(), nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM clinical_session WHERE id = \? FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(sessionSQLCols).
			AddRow(int64(7), int64(1), nil, string(StageRegistration), string(StateNew),
				string(PriorityUnknown), nil, nil, nil, nil, now, nil, now, now))
	mock.ExpectExec(`INSERT INTO state_transition`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE clinical_session SET state = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := svc.Transition(context.Background(), 7, StateTriaged, ReasonAssessmentCompleted, nil, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A failed guard rolls the transaction back without touching the row.
func TestTransition_IllegalEdgeRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	svc := NewService(conn, NewRepo(conn), DefaultWorkflow(), nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM clinical_session WHERE id = \? FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(sessionSQLCols).
			AddRow(int64(7), int64(1), nil, string(StageRegistration), string(StateNew),
				string(PriorityUnknown), nil, nil, nil, nil, now, nil, now, now))
	mock.ExpectRollback()

	if _, err := svc.Transition(context.Background(), 7, StateClosed, "done", nil, nil); err == nil {
		t.Fatal("expected illegal transition to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
