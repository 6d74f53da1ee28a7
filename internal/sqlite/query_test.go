package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		q        types.Select
		wantSQL  string
		wantArgs []types.Value
	}{
		{
			name:    "all columns",
			q:       types.Select{Table: "items"},
			wantSQL: "SELECT * FROM items",
		},
		{
			name:    "listed columns",
			q:       types.Select{Table: "items", Columns: []string{"id", "label"}},
			wantSQL: "SELECT id, label FROM items",
		},
		{
			name:     "where with arguments",
			q:        types.Select{Table: "items", Where: "id = ?", WhereArgs: []types.Value{types.Text("1")}},
			wantSQL:  "SELECT * FROM items WHERE id = ?",
			wantArgs: []types.Value{types.Text("1")},
		},
		{
			name:    "where without placeholders",
			q:       types.Select{Table: "items", Where: "label IS NULL"},
			wantSQL: "SELECT * FROM items WHERE label IS NULL",
		},
		{
			name: "every clause",
			q: types.Select{
				Table:     "items",
				Columns:   []string{"label", "COUNT(*)"},
				Where:     "id > ?",
				WhereArgs: []types.Value{types.Int(0)},
				GroupBy:   "label",
				Having:    "COUNT(*) > 1",
				OrderBy:   "label",
				Order:     types.OrderDesc,
				Limit:     10,
			},
			wantSQL:  "SELECT label, COUNT(*) FROM items WHERE id > ? GROUP BY label HAVING COUNT(*) > 1 ORDER BY label DESC LIMIT 10",
			wantArgs: []types.Value{types.Int(0)},
		},
		{
			name: "having placeholder takes arguments",
			q: types.Select{
				Table:     "items",
				Columns:   []string{"label"},
				GroupBy:   "label",
				Having:    "COUNT(*) > ?",
				WhereArgs: []types.Value{types.Int(1)},
			},
			wantSQL:  "SELECT label FROM items GROUP BY label HAVING COUNT(*) > ?",
			wantArgs: []types.Value{types.Int(1)},
		},
		{
			name:    "order by without direction",
			q:       types.Select{Table: "items", OrderBy: "id"},
			wantSQL: "SELECT * FROM items ORDER BY id",
		},
		{
			name:    "direction without order by is ignored",
			q:       types.Select{Table: "items", Order: types.OrderAsc},
			wantSQL: "SELECT * FROM items",
		},
		{
			name:    "zero limit means no limit",
			q:       types.Select{Table: "items", Limit: 0},
			wantSQL: "SELECT * FROM items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildSelect(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelect_Rejects(t *testing.T) {
	tests := []struct {
		name string
		q    types.Select
	}{
		{name: "empty table", q: types.Select{}},
		{name: "blank table", q: types.Select{Table: "  "}},
		{name: "placeholder without arguments", q: types.Select{Table: "items", Where: "id = ?"}},
		{name: "placeholder after literal", q: types.Select{Table: "items", Where: "label = 'a' AND id = ?"}},
		{name: "arguments without predicate", q: types.Select{Table: "items", WhereArgs: []types.Value{types.Int(1)}}},
		{name: "having without group by", q: types.Select{Table: "items", Having: "COUNT(*) > 1"}},
		{name: "negative limit", q: types.Select{Table: "items", Limit: -1}},
		{name: "unknown order", q: types.Select{Table: "items", OrderBy: "id", Order: "SIDEWAYS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildSelect(tt.q)
			assert.ErrorIs(t, err, types.ErrInvalidQuery)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	sql, err := buildInsert("items", []string{"id", "label"}, false)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO items (id, label) VALUES (?, ?)", sql)

	sql, err = buildInsert("items", []string{"id"}, true)
	require.NoError(t, err)
	assert.Equal(t, "INSERT OR REPLACE INTO items (id) VALUES (?)", sql)

	_, err = buildInsert("", []string{"id"}, false)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)

	_, err = buildInsert("items", nil, false)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestBuildDelete(t *testing.T) {
	sql, err := buildDelete("items", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM items", sql)

	sql, err = buildDelete("items", "id = ?", []types.Value{types.Text("1")})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM items WHERE id = ?", sql)

	_, err = buildDelete("items", "id = ?", nil)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)

	_, err = buildDelete("", "", nil)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestHasPlaceholder(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "", want: false},
		{in: "id = ?", want: true},
		{in: "label = 'what?'", want: false},
		{in: "label = 'it''s ?'", want: false},
		{in: `"col?" = 1`, want: false},
		{in: "`col?` = 1 AND [x?] = 2", want: false},
		{in: "label = 'a' AND id = ?", want: true},
		{in: "label = 'unterminated ?", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, hasPlaceholder(tt.in))
		})
	}
}

func TestBuildSelect_QuestionMarkInLiteral(t *testing.T) {
	sql, args, err := buildSelect(types.Select{Table: "items", Where: "label = 'what?'"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM items WHERE label = 'what?'", sql)
	assert.Empty(t, args)

	_, err = buildDelete("items", `"col?" = 1`, nil)
	assert.NoError(t, err)
}
