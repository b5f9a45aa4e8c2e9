package snapshot

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EnvelopeVersion tags every stored blob. Blobs with another tag are
// treated as corrupt.
const EnvelopeVersion = 2

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemaOnce     sync.Once
	snapshotSchema *jsonschema.Schema
	prefsSchema    *jsonschema.Schema
	schemaErr      error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	for _, name := range []string{"snapshot.schema.json", "prefs.schema.json"} {
		raw, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", name, err)
			return
		}
	}
	if snapshotSchema, schemaErr = compiler.Compile("snapshot.schema.json"); schemaErr != nil {
		return
	}
	prefsSchema, schemaErr = compiler.Compile("prefs.schema.json")
}

func schemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	schemaOnce.Do(compileSchemas)
	return snapshotSchema, prefsSchema, schemaErr
}

type snapshotEnvelope struct {
	Version  int             `json:"version"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type prefsEnvelope struct {
	Version int   `json:"version"`
	Prefs   Prefs `json:"prefs"`
}

func encodeSnapshot(s domain.Snapshot) ([]byte, error) {
	s.MoveHistory = domain.CloneMoves(s.MoveHistory)
	return json.Marshal(snapshotEnvelope{Version: EnvelopeVersion, Snapshot: s})
}

// decodeSnapshot validates raw against the schema and merges it over the
// default record.
func decodeSnapshot(raw []byte) (domain.Snapshot, error) {
	schema, _, err := schemas()
	if err != nil {
		return domain.DefaultSnapshot(), err
	}
	if err := validate(schema, raw); err != nil {
		return domain.DefaultSnapshot(), err
	}
	base := domain.DefaultSnapshot()
	// an absent side to move is derived from the history length
	base.ActiveColor = ""
	env := snapshotEnvelope{Snapshot: base}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.DefaultSnapshot(), corrupt("decode", err)
	}
	return normalizeSnapshot(env.Snapshot), nil
}

func encodePrefs(p Prefs) ([]byte, error) {
	return json.Marshal(prefsEnvelope{Version: EnvelopeVersion, Prefs: p})
}

func decodePrefs(raw []byte) (Prefs, error) {
	_, schema, err := schemas()
	if err != nil {
		return DefaultPrefs(), err
	}
	if err := validate(schema, raw); err != nil {
		return DefaultPrefs(), err
	}
	env := prefsEnvelope{Prefs: DefaultPrefs()}
	if err := json.Unmarshal(raw, &env); err != nil {
		return DefaultPrefs(), corrupt("decode", err)
	}
	return normalizePrefs(env.Prefs), nil
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return corrupt("parse", err)
	}
	if err := schema.Validate(doc); err != nil {
		return corrupt("schema", err)
	}
	return nil
}

func corrupt(stage string, err error) error {
	return chessdto.NewError(chessdto.CodeCorruptSnapshot, "snapshot "+stage+" failed", err)
}

func normalizeSnapshot(s domain.Snapshot) domain.Snapshot {
	def := domain.DefaultSnapshot()
	if s.MoveHistory == nil {
		s.MoveHistory = []domain.Move{}
	}
	for i := range s.MoveHistory {
		mv := &s.MoveHistory[i]
		mv.Promotion = strings.ToLower(mv.Promotion)
		if mv.Type == "" {
			mv.Type = domain.KindNormal
		}
	}
	s.Status = domain.NormalizeStatus(string(s.Status))
	if c := domain.ParseColor(string(s.ActiveColor)); c != "" {
		s.ActiveColor = c
	} else {
		s.ActiveColor = domain.ActiveColorAfter(len(s.MoveHistory))
	}
	if c := domain.ParseColor(string(s.Orientation)); c != "" {
		s.Orientation = c
	} else {
		s.Orientation = def.Orientation
	}
	if m := domain.ParseMode(string(s.Settings.Mode)); m != "" {
		s.Settings.Mode = m
	} else {
		s.Settings.Mode = def.Settings.Mode
	}
	if c := domain.ParseColor(string(s.Settings.PlayerColor)); c != "" {
		s.Settings.PlayerColor = c
	} else {
		s.Settings.PlayerColor = def.Settings.PlayerColor
	}
	if strings.TrimSpace(s.Settings.TimerMode) == "" {
		s.Settings.TimerMode = def.Settings.TimerMode
	}
	return s
}
