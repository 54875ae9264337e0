package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
)

const sampleYAML = `
log:
  level: debug
  format: json
follow:
  debounce_ms: 250
catchers:
  - name: tables
    type: regex
    start: "^CREATE TABLE "
    end: "\\) ENGINE="
    print: true
    tags: [sql]
  - name: rest
    type: text
    start: ""
    muffle: true
    priority: 500
`

func priority(n int) *int { return &n }

func loadYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, 100, cfg.Follow.DebounceMs)
	assert.Empty(t, cfg.Catchers)
	assert.Empty(t, cfg.Validate())
}

func TestLoadDefaultsOnly(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Log, cfg.Log)
	assert.Equal(t, 100*time.Millisecond, cfg.Follow.DebounceInterval())
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Follow.DebounceInterval())

	require.Len(t, cfg.Catchers, 2)
	tables := cfg.Catchers[0]
	assert.Equal(t, "tables", tables.Name)
	assert.Equal(t, TypeRegex, tables.Type)
	assert.Equal(t, `^CREATE TABLE `, tables.Start)
	assert.Equal(t, `\) ENGINE=`, tables.End)
	assert.True(t, tables.Print)
	assert.Equal(t, []string{"sql"}, tables.Tags)
	assert.Nil(t, tables.Priority)
	assert.Equal(t, catcher.DefaultPriority, tables.QueuePriority())

	rest := cfg.Catchers[1]
	assert.True(t, rest.Muffle)
	assert.Equal(t, 500, rest.QueuePriority())
}

func TestLoadInvalid(t *testing.T) {
	doc := `
log:
  level: loud
catchers:
  - type: regexp
  - type: regex
    listen: true
    muffle: true
    count: -1
`
	_, err := Load(loadYAML(t, doc))
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"log.level",
		"catchers[0].type",
		"catchers[1].start",
		"catchers[1]",
		"catchers[1].count",
	}, fields)
	assert.Contains(t, err.Error(), "5 validation errors")
}

func TestValidationErrorsFormatting(t *testing.T) {
	assert.Equal(t, "", ValidationErrors{}.Error())

	one := ValidationErrors{{Field: "log.format", Value: "xml", Message: "must be one of: text, json"}}
	assert.Equal(t, "log.format: must be one of: text, json (got: xml)", one.Error())
}

func TestBuildQueue(t *testing.T) {
	cfg, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)

	var printed, blocks []string
	q, err := cfg.BuildQueue(BuildOptions{
		Emit:    func(out string) { printed = append(printed, out) },
		OnBlock: func(name string) { blocks = append(blocks, name) },
	})
	require.NoError(t, err)
	require.Equal(t, 2, q.Len())

	for _, line := range []string{"CREATE TABLE x (", "id int,", ") ENGINE=InnoDB;", "normal log line"} {
		_, ok := q.Line(line)
		assert.False(t, ok, "every line should be muffled: %q", line)
	}

	assert.Equal(t, []string{"CREATE TABLE x (\nid int,\n) ENGINE=InnoDB;"}, printed)
	assert.Equal(t, []string{"tables", "rest", "rest"}, blocks)
}

func TestBuildQueuePriorityOrder(t *testing.T) {
	cfg := Default()
	cfg.Catchers = []CatcherConfig{
		{Name: "late", Type: TypeText, Start: "", Priority: priority(200)},
		{Name: "early", Type: TypeText, Start: "", Priority: priority(10)},
	}

	q, err := cfg.BuildQueue(BuildOptions{})
	require.NoError(t, err)

	members := q.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "early", members[0].(*catcher.Machine).Name())
}

func TestBuildCatcher(t *testing.T) {
	tests := []struct {
		name  string
		cc    CatcherConfig
		input []string
		want  string
	}{
		{
			name:  "line",
			cc:    CatcherConfig{Type: TypeLine, Start: "X"},
			input: []string{"X"},
			want:  "X",
		},
		{
			name:  "text",
			cc:    CatcherConfig{Type: TypeText, Start: "err"},
			input: []string{"an error"},
			want:  "an error",
		},
		{
			name:  "regex expects",
			cc:    CatcherConfig{Type: TypeRegex, Start: "^head", End: "never", Expects: 2},
			input: []string{"header", "body"},
			want:  "header\nbody",
		},
		{
			name:  "table summary",
			cc:    CatcherConfig{Type: TypeTable, Summary: true},
			input: []string{"CREATE TABLE t (", "a int", ") ENGINE=InnoDB;"},
			want:  "table t: 1 columns, 0 keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.cc.Build(BuildOptions{})
			require.NoError(t, err)

			var out string
			for _, line := range tt.input {
				out, _ = m.Feed(line)
			}
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestBuildCatcherErrors(t *testing.T) {
	_, err := CatcherConfig{Type: "bogus"}.Build(BuildOptions{})
	assert.ErrorContains(t, err, "unknown catcher type")

	cfg := Default()
	cfg.Catchers = []CatcherConfig{{Name: "bad", Type: TypeRegex, Start: "("}}
	_, err = cfg.BuildQueue(BuildOptions{})
	assert.ErrorIs(t, err, catcher.ErrInvalidPattern)
	assert.ErrorContains(t, err, "catchers[0] (bad)")
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/textcatcher", ConfigDir())
	assert.Equal(t, "/tmp/xdg/textcatcher/textcatcher.yaml", ConfigFile())
}

func TestPopulateKeepsExistingMembers(t *testing.T) {
	q := catcher.NewQueue()
	first, err := catcher.NewText("", catcher.Options{Name: "first", Listen: true})
	require.NoError(t, err)
	q.AddWithPriority(first, 1)

	cfg := Default()
	cfg.Catchers = []CatcherConfig{{Name: "added", Type: TypeLine, Start: "x"}}
	require.NoError(t, cfg.Populate(q, BuildOptions{}))

	members := q.Members()
	require.Len(t, members, 2)
	assert.Same(t, first, members[0])
	assert.Equal(t, "added", members[1].(*catcher.Machine).Name())
}

func TestLoadPriorityZero(t *testing.T) {
	doc := `
catchers:
  - name: default
    type: text
  - name: first
    type: text
    priority: 0
`
	cfg, err := Load(loadYAML(t, doc))
	require.NoError(t, err)
	require.NotNil(t, cfg.Catchers[1].Priority)
	assert.Equal(t, 0, cfg.Catchers[1].QueuePriority())

	q, err := cfg.BuildQueue(BuildOptions{})
	require.NoError(t, err)

	members := q.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "first", members[0].(*catcher.Machine).Name())
	assert.Equal(t, "default", members[1].(*catcher.Machine).Name())
}
