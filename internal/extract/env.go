// Package extract runs package scripts inside a Lua sandbox and turns
// every prototype addition or field assignment they make into ledger
// records. The sandbox exposes the data table mods expect: a
// data.extend function and data.raw proxies whose field reads and
// writes route back into Go.
package extract

import (
	"fmt"

	lua "github.com/Shopify/go-lua"
	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// bootstrap wires the data table. Prototype proxies resolve reads and
// writes through the registered harmonizer_* functions, so scripts
// observe the ledger's current state rather than a detached copy.
const bootstrap = `
data = { raw = {} }

local function prototype_proxy(kind, name)
  return setmetatable({}, {
    __index = function(_, field)
      return harmonizer_get(kind, name, field)
    end,
    __newindex = function(_, field, value)
      harmonizer_set(kind, name, field, value)
    end,
  })
end

setmetatable(data.raw, {
  __index = function(raw, kind)
    local by_name = setmetatable({}, {
      __index = function(_, name)
        if not harmonizer_exists(kind, name) then
          return nil
        end
        return prototype_proxy(kind, name)
      end,
      __newindex = function(_, name, value)
        harmonizer_define(kind, name, value)
      end,
    })
    rawset(raw, kind, by_name)
    return by_name
  end,
})

-- Handles both data:extend(defs) and data.extend(defs); the def table
-- is the last argument either way.
data.extend = function(...)
  local n = select('#', ...)
  harmonizer_extend((select(n, ...)))
end
`

// Environment is a single-use Lua sandbox bound to a ledger.
type Environment struct {
	l      *lua.State
	store  *history.Store
	logger *log.Logger
}

// New creates a sandbox writing into the given ledger.
func New(store *history.Store, logger *log.Logger) (*Environment, error) {
	if logger == nil {
		logger = log.Default()
	}
	l := lua.NewState()
	lua.OpenLibraries(l)
	e := &Environment{l: l, store: store, logger: logger}

	l.Register("harmonizer_extend", e.luaExtend)
	l.Register("harmonizer_get", e.luaGet)
	l.Register("harmonizer_set", e.luaSet)
	l.Register("harmonizer_define", e.luaDefine)
	l.Register("harmonizer_exists", e.luaExists)

	if err := lua.DoString(l, bootstrap); err != nil {
		return nil, fmt.Errorf("install data table: %w", err)
	}
	return e, nil
}

// Execute runs a package script. Script errors are returned, not
// fatal; the ledger keeps whatever the script recorded before failing.
func (e *Environment) Execute(code string) error {
	if err := lua.DoString(e.l, code); err != nil {
		return fmt.Errorf("execute package script: %w", err)
	}
	return nil
}

// luaExtend handles data:extend, recording each definition in the
// argument array.
func (e *Environment) luaExtend(l *lua.State) int {
	if l.TypeOf(-1) != lua.TypeTable {
		e.logger.Warn("data:extend called without a table argument")
		return 0
	}
	defs, ok := e.toGoValue(-1).([]any)
	if !ok {
		e.logger.Warn("data:extend argument is not an array")
		return 0
	}
	for _, raw := range defs {
		m, ok := raw.(map[string]any)
		if !ok {
			e.logger.Warn("data:extend entry is not a table, dropped")
			continue
		}
		def, err := NormalizeDef(m)
		if err != nil {
			e.logger.Warn("malformed definition dropped", "err", err)
			continue
		}
		e.store.RecordAddition(def.Kind, def.Name, def)
	}
	return 0
}

// luaGet resolves a field read against the ledger's current state.
func (e *Environment) luaGet(l *lua.State) int {
	kind := lua.CheckString(l, 1)
	name := lua.CheckString(l, 2)
	field := lua.CheckString(l, 3)
	e.pushGoValue(e.currentField(kind, name, field))
	return 1
}

// luaSet records a field assignment, capturing the previous value
// from the ledger.
func (e *Environment) luaSet(l *lua.State) int {
	kind := lua.CheckString(l, 1)
	name := lua.CheckString(l, 2)
	field := lua.CheckString(l, 3)
	newValue := NormalizeField(field, e.toGoValue(4))
	oldValue := e.currentField(kind, name, field)
	e.store.RecordModification(kind, name, field, oldValue, newValue)
	return 0
}

// luaDefine handles whole-object assignment to a data.raw slot.
func (e *Environment) luaDefine(l *lua.State) int {
	kind := lua.CheckString(l, 1)
	name := lua.CheckString(l, 2)
	m, ok := e.toGoValue(3).(map[string]any)
	if !ok {
		e.logger.Warn("prototype assignment is not a table, dropped", "kind", kind, "name", name)
		return 0
	}
	if _, has := m["type"]; !has {
		m["type"] = kind
	}
	if _, has := m["name"]; !has {
		m["name"] = name
	}
	def, err := NormalizeDef(m)
	if err != nil {
		e.logger.Warn("malformed definition dropped", "kind", kind, "name", name, "err", err)
		return 0
	}
	e.store.RecordAddition(def.Kind, def.Name, def)
	return 0
}

// luaExists lets scripts test prototype presence with
// `if data.raw.recipe["x"] then`.
func (e *Environment) luaExists(l *lua.State) int {
	kind := lua.CheckString(l, 1)
	name := lua.CheckString(l, 2)
	_, ok := e.store.HistoryFor(kind, name)
	l.PushBoolean(ok)
	return 1
}

func (e *Environment) currentField(kind, name, field string) any {
	h, ok := e.store.HistoryFor(kind, name)
	if !ok {
		return nil
	}
	if def, ok := h.CurrentDef(); ok {
		return fieldValue(def, field)
	}
	// The last write was a field modify, so walk back to the newest
	// record that determines this field.
	recs := h.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.FieldPath == field {
			return r.NewValue
		}
		if r.FieldPath == "" {
			if def, ok := r.NewValue.(*prototype.Def); ok {
				return fieldValue(def, field)
			}
		}
	}
	return nil
}
