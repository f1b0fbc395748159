package extract

import (
	"sort"
	"strconv"

	lua "github.com/Shopify/go-lua"

	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// toGoValue converts the Lua value at index into Go data: nil, bool,
// float64, string, []any for array-shaped tables, or map[string]any.
func (e *Environment) toGoValue(index int) any {
	l := e.l
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeTable:
		return e.tableToGo(index)
	default:
		return nil
	}
}

func (e *Environment) tableToGo(index int) any {
	l := e.l
	idx := l.AbsIndex(index)
	arr := make(map[int]any)
	m := make(map[string]any)

	l.PushNil()
	for l.Next(idx) {
		// Key at -2, value at -1. Never call ToString on a number
		// key: it would rewrite the key in place and break Next.
		v := e.toGoValue(-1)
		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			arr[int(n)] = v
		case lua.TypeString:
			k, _ := l.ToString(-2)
			m[k] = v
		}
		l.Pop(1)
	}

	if len(m) == 0 && len(arr) > 0 {
		keys := make([]int, 0, len(arr))
		for k := range arr {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, arr[k])
		}
		return out
	}
	for k, v := range arr {
		m[strconv.Itoa(k)] = v
	}
	return m
}

// pushGoValue pushes Go data for a field read. The typed ledger shapes
// are converted back into the table forms scripts expect.
func (e *Environment) pushGoValue(v any) {
	l := e.l
	switch t := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(t)
	case int:
		l.PushInteger(t)
	case float64:
		l.PushNumber(t)
	case string:
		l.PushString(t)
	case []string:
		l.NewTable()
		for i, s := range t {
			l.PushString(s)
			l.RawSetInt(-2, i+1)
		}
	case []any:
		l.NewTable()
		for i, item := range t {
			e.pushGoValue(item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.NewTable()
		for k, item := range t {
			e.pushGoValue(item)
			l.SetField(-2, k)
		}
	case []prototype.Ingredient:
		l.NewTable()
		for i, ing := range t {
			e.pushItemStack(ing.Type, ing.Name, ing.Amount)
			l.RawSetInt(-2, i+1)
		}
	case []prototype.Result:
		l.NewTable()
		for i, res := range t {
			e.pushItemStack(res.Type, res.Name, res.Amount)
			l.RawSetInt(-2, i+1)
		}
	case []prototype.Effect:
		l.NewTable()
		for i, eff := range t {
			l.NewTable()
			l.PushString(eff.Type)
			l.SetField(-2, "type")
			if eff.Recipe != "" {
				l.PushString(eff.Recipe)
				l.SetField(-2, "recipe")
			}
			l.RawSetInt(-2, i+1)
		}
	case *prototype.Unit:
		if t == nil {
			l.PushNil()
			return
		}
		l.NewTable()
		l.PushInteger(t.Count)
		l.SetField(-2, "count")
		l.PushNumber(t.Time)
		l.SetField(-2, "time")
		if len(t.Ingredients) > 0 {
			e.pushGoValue(t.Ingredients)
			l.SetField(-2, "ingredients")
		}
	default:
		l.PushNil()
	}
}

func (e *Environment) pushItemStack(typ, name string, amount int) {
	l := e.l
	l.NewTable()
	if typ == "" {
		typ = "item"
	}
	l.PushString(typ)
	l.SetField(-2, "type")
	l.PushString(name)
	l.SetField(-2, "name")
	l.PushInteger(amount)
	l.SetField(-2, "amount")
}
