package dialect

import (
	"testing"

	"github.com/user/relaygate/internal/config"
)

func TestPlaceholder(t *testing.T) {
	cases := []struct {
		dialect config.Dialect
		index   int
		want    string
	}{
		{config.MySQL, 1, "?"},
		{config.SQLite, 3, "?"},
		{config.MSSQL, 1, "@p0"},
		{config.MSSQL, 4, "@p3"},
	}
	for _, tc := range cases {
		if got := Placeholder(tc.dialect, tc.index); got != tc.want {
			t.Errorf("Placeholder(%v, %d) = %q, want %q", tc.dialect, tc.index, got, tc.want)
		}
	}
}

func TestPageClause(t *testing.T) {
	if got := PageClause(config.MySQL, "?", "?"); got != "LIMIT ? OFFSET ?" {
		t.Errorf("mysql page clause = %q", got)
	}
	if got := PageClause(config.MSSQL, "@p0", "@p1"); got != "OFFSET @p0 ROWS FETCH NEXT @p1 ROWS ONLY" {
		t.Errorf("mssql page clause = %q", got)
	}
}

func TestPoolOpenMissingHostSpec(t *testing.T) {
	p := NewPool(&config.DbConfig{})
	if _, err := p.Open(config.DbDrive{Drive: config.MySQL, Host: "missing"}); err == nil {
		t.Fatal("expected error for unregistered host")
	}
}
