package sqlbuilder

import (
	"strings"
	"testing"

	"github.com/user/relaygate/internal/config"
)

func sampleEndpoint() *config.EndpointDef {
	return &config.EndpointDef{
		TableName: "widgets",
		Field:     []string{"id", "name", "status"},
		ConditionSchema: map[string]config.ConditionEntry{
			"status": {Fields: []string{"status"}, Operator: "="},
			"ids":    {Fields: []string{"id"}, Operator: "in"},
		},
		Sort: []config.SortField{{Field: "id", Order: config.Desc}},
		Pk:   "id",
	}
}

func TestBuildListMySQL(t *testing.T) {
	stmt, _, err := BuildList(config.MySQL, sampleEndpoint(), map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	if !strings.Contains(stmt.SQL, "WHERE `status` = ?") {
		t.Errorf("unexpected SQL: %s", stmt.SQL)
	}
	if !strings.Contains(stmt.SQL, "ORDER BY `id` DESC") {
		t.Errorf("expected order by clause, got: %s", stmt.SQL)
	}
	if len(stmt.Args) != 1 || stmt.Args[0] != "active" {
		t.Errorf("unexpected args: %v", stmt.Args)
	}
}

func TestBuildListInMSSQLUsesNamedPlaceholders(t *testing.T) {
	stmt, _, err := BuildList(config.MSSQL, sampleEndpoint(), map[string]any{"ids": []any{float64(1), float64(2)}})
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	if !strings.Contains(stmt.SQL, "@p0") || !strings.Contains(stmt.SQL, "@p1") {
		t.Errorf("expected zero-based @p placeholders, got: %s", stmt.SQL)
	}
}

func TestBuildPageAppendsLimitOffset(t *testing.T) {
	stmt, _, err := BuildPage(config.MySQL, sampleEndpoint(), nil, 2, 10, 0)
	if err != nil {
		t.Fatalf("BuildPage: %v", err)
	}
	if !strings.Contains(stmt.SQL, "LIMIT ? OFFSET ?") {
		t.Errorf("expected limit/offset clause: %s", stmt.SQL)
	}
	// page 2, size 10 -> offset 10
	if stmt.Args[len(stmt.Args)-1] != 10 {
		t.Errorf("expected offset arg 10, got %v", stmt.Args[len(stmt.Args)-1])
	}
}

func TestBuildDeepPageRequiresSort(t *testing.T) {
	ep := sampleEndpoint()
	ep.Sort = nil
	if _, _, err := BuildDeepPage(config.MySQL, ep, nil, 1, 10); err != ErrSortRequired {
		t.Fatalf("expected ErrSortRequired, got %v", err)
	}
}

func TestBuildDeepPageWindowsByRowNumber(t *testing.T) {
	stmt, _, err := BuildDeepPage(config.MSSQL, sampleEndpoint(), nil, 3, 20)
	if err != nil {
		t.Fatalf("BuildDeepPage: %v", err)
	}
	if !strings.Contains(stmt.SQL, "ROW_NUMBER() OVER") {
		t.Errorf("expected windowed query: %s", stmt.SQL)
	}
	// page 3, size 20 -> bounds (40, 60], emitted as literals, not bound args.
	if !strings.Contains(stmt.SQL, "BETWEEN 41 AND 60") {
		t.Errorf("expected literal bounds in SQL, got: %s", stmt.SQL)
	}
	if len(stmt.Args) != 0 {
		t.Errorf("expected no bound args for deep page bounds, got: %v", stmt.Args)
	}
}

func TestBuildModifyInsertsWhenNoPkOrFilter(t *testing.T) {
	ep := sampleEndpoint()
	stmt, _, err := BuildModify(config.MySQL, ep, map[string]any{"name": "widget-1"})
	if err != nil {
		t.Fatalf("BuildModify: %v", err)
	}
	if !strings.HasPrefix(stmt.SQL, "INSERT INTO") {
		t.Errorf("expected INSERT, got: %s", stmt.SQL)
	}
}

func TestBuildModifyUpdatesWhenPkPresent(t *testing.T) {
	ep := sampleEndpoint()
	stmt, _, err := BuildModify(config.MySQL, ep, map[string]any{"id": 7, "name": "renamed"})
	if err != nil {
		t.Fatalf("BuildModify: %v", err)
	}
	if !strings.HasPrefix(stmt.SQL, "UPDATE") {
		t.Errorf("expected UPDATE, got: %s", stmt.SQL)
	}
	if !strings.Contains(stmt.SQL, "WHERE `id` = ?") {
		t.Errorf("expected pk filter, got: %s", stmt.SQL)
	}
}

func TestBuildModifyRejectsUnconditionalUpdate(t *testing.T) {
	ep := sampleEndpoint()
	ep.ConditionSchema = nil
	ep.Action = "update"
	if _, _, err := BuildModify(config.MySQL, ep, map[string]any{"name": "x"}); err != ErrNoFilter {
		t.Fatalf("expected ErrNoFilter, got %v", err)
	}
}

func TestBuildModifyEmptyColumnsFails(t *testing.T) {
	ep := sampleEndpoint()
	if _, _, err := BuildModify(config.MySQL, ep, map[string]any{}); err != ErrEmptyColumnSet {
		t.Fatalf("expected ErrEmptyColumnSet, got %v", err)
	}
}

func TestBuildWhereWarnsOnLargeMSSQLInList(t *testing.T) {
	c := NewContext(config.MSSQL)
	schema := map[string]config.ConditionEntry{"ids": {Fields: []string{"id"}, Operator: "in"}}
	items := make([]any, 1500)
	for i := range items {
		items[i] = i
	}
	_, warnings, err := c.BuildWhere(schema, map[string]any{"ids": items})
	if err != nil {
		t.Fatalf("BuildWhere: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for an oversized IN list")
	}
}
