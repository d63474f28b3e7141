package guard

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// referenceMarker distinguishes argument references from literal keys.
const referenceMarker = "#"

// KeyIdentifier is implemented by values that name their own lock identity.
type KeyIdentifier interface {
	KeyIdentity() string
}

// resolve turns one key expression into lock identifiers.
func resolve(evaluator Evaluator, expression string, call CallContext, keyClass string) ([]string, error) {
	prefix := keyClass + "@"
	if !strings.Contains(expression, referenceMarker) {
		return []string{prefix + expression}, nil
	}

	value, err := evaluator.Evaluate(expression, call.Vars())
	if err != nil {
		return nil, &ExpressionError{Expression: expression, Err: err}
	}

	ids, err := identities(value)
	if err != nil {
		return nil, &ExpressionError{Expression: expression, Err: err}
	}
	for i, id := range ids {
		ids[i] = prefix + id
	}
	return ids, nil
}

// identities returns one identity per element of a slice or array value,
// or a single identity for any other value. Nil yields no identity.
func identities(value any) ([]string, error) {
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return nil, nil
	}

	if (rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || rv.Kind() == reflect.Array {
		ids := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			id, err := identityOf(rv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	id, err := identityOf(rv)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

// identityOf derives a content-based identity. Scalars are written out,
// anything else is hashed from its contents.
func identityOf(v reflect.Value) (string, error) {
	if id, ok := keyIdentity(v); ok {
		return id, nil
	}
	rv, ok := indirect(v)
	if !ok {
		return "", fmt.Errorf("nil value has no lock identity")
	}
	if id, ok := keyIdentity(rv); ok {
		return id, nil
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), nil
		}
	}

	d := xxhash.New()
	if err := hashValue(d, rv, 0); err != nil {
		return "", err
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}

func keyIdentity(v reflect.Value) (string, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return "", false
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return "", false
	}
	k, ok := v.Interface().(KeyIdentifier)
	if !ok {
		return "", false
	}
	return k.KeyIdentity(), true
}

// indirect follows pointers and interfaces. It reports false for nil.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

const maxHashDepth = 32

// hashValue writes a canonical encoding of v into d. Unexported fields are
// included and map entries are ordered, so equal contents hash equally.
func hashValue(d *xxhash.Digest, v reflect.Value, depth int) error {
	if depth > maxHashDepth {
		return fmt.Errorf("value nested deeper than %d levels", maxHashDepth)
	}

	rv, ok := indirect(v)
	if !ok {
		_, _ = d.WriteString("\x00nil")
		return nil
	}

	var buf [8]byte
	writeUint := func(u uint64) {
		binary.LittleEndian.PutUint64(buf[:], u)
		_, _ = d.Write(buf[:])
	}

	_, _ = d.WriteString(rv.Type().String())
	switch rv.Kind() {
	case reflect.String:
		writeUint(uint64(rv.Len()))
		_, _ = d.WriteString(rv.String())
	case reflect.Bool:
		if rv.Bool() {
			writeUint(1)
		} else {
			writeUint(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeUint(uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		writeUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		writeUint(math.Float64bits(rv.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		writeUint(math.Float64bits(real(c)))
		writeUint(math.Float64bits(imag(c)))
	case reflect.Slice, reflect.Array:
		writeUint(uint64(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			if err := hashValue(d, rv.Index(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		type entry struct{ key, value uint64 }
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			kd, vd := xxhash.New(), xxhash.New()
			if err := hashValue(kd, iter.Key(), depth+1); err != nil {
				return err
			}
			if err := hashValue(vd, iter.Value(), depth+1); err != nil {
				return err
			}
			entries = append(entries, entry{kd.Sum64(), vd.Sum64()})
		}
		slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })
		writeUint(uint64(len(entries)))
		for _, e := range entries {
			writeUint(e.key)
			writeUint(e.value)
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			_, _ = d.WriteString(t.Field(i).Name)
			if err := hashValue(d, rv.Field(i), depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s value has no lock identity", rv.Type())
	}
	return nil
}
