package cumulo

import (
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/internal/inflect"
	"github.com/spf13/cast"
)

// Filter narrows a list action to items whose named attribute matches any of
// the given values. Filter names use the API's filter vocabulary (e.g.
// "state", "volume_id") and are sent verbatim.
type Filter struct {
	Name   string   `json:"name"   yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Params carries the caller-supplied parameters for one API action. Names
// are local snake_case; the wire layer inflects them to the remote casing.
// The zero value is not usable; construct with NewParams.
type Params struct {
	values  map[string]interface{}
	filters []Filter
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{
		values: make(map[string]interface{}),
	}
}

// Set stores a parameter value under a local snake_case name. Scalars,
// string slices, nested maps and slices of maps are supported; nested map
// keys are inflected like top-level names.
func (p *Params) Set(name string, value interface{}) *Params {
	p.values[name] = value

	return p
}

// Get returns the raw value for name and whether it is present.
func (p *Params) Get(name string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}

	value, ok := p.values[name]

	return value, ok
}

// Has reports whether name is set.
func (p *Params) Has(name string) bool {
	_, ok := p.Get(name)

	return ok
}

// Unset removes a parameter.
func (p *Params) Unset(name string) *Params {
	delete(p.values, name)

	return p
}

// WithFilter appends a filter. Chainable.
func (p *Params) WithFilter(name string, values ...string) *Params {
	p.filters = append(p.filters, Filter{Name: name, Values: values})

	return p
}

// Filters returns the filters added so far.
func (p *Params) Filters() []Filter {
	if p == nil {
		return nil
	}

	return p.filters
}

// Names returns the parameter names in sorted order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}

	names := make([]string, 0, len(p.values))

	for name := range p.values {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of set parameters, not counting filters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}

	return len(p.values)
}

// Clone returns an independent shallow copy.
func (p *Params) Clone() *Params {
	clone := NewParams()

	if p == nil {
		return clone
	}

	for name, value := range p.values {
		clone.values[name] = value
	}

	clone.filters = append(clone.filters, p.filters...)

	return clone
}

// QueryValues flattens the parameters into query protocol form: names
// inflected to PascalCase, lists as "Name.1".."Name.N", nested maps as
// dotted members, filters as "Filter.N.Name"/"Filter.N.Value.M".
func (p *Params) QueryValues() url.Values {
	values := url.Values{}

	if p == nil {
		return values
	}

	for name, value := range p.values {
		flattenInto(values, inflect.ToRemote(name), value)
	}

	for i, filter := range p.filters {
		prefix := "Filter." + strconv.Itoa(i+1)
		values.Set(prefix+".Name", filter.Name)

		for j, filterValue := range filter.Values {
			values.Set(prefix+".Value."+strconv.Itoa(j+1), filterValue)
		}
	}

	return values
}

// JSONMap renders the parameters as a JSON protocol request body: remote
// PascalCase keys, native values, filters under "Filters".
func (p *Params) JSONMap() map[string]interface{} {
	body := make(map[string]interface{})

	if p == nil {
		return body
	}

	for name, value := range p.values {
		body[inflect.ToRemote(name)] = jsonValue(value)
	}

	if len(p.filters) > 0 {
		filters := make([]interface{}, 0, len(p.filters))

		for _, filter := range p.filters {
			filters = append(filters, map[string]interface{}{
				"Name":   filter.Name,
				"Values": filter.Values,
			})
		}

		body["Filters"] = filters
	}

	return body
}

// flattenInto writes one parameter value under key, recursing through
// slices and maps per the query protocol numbering scheme.
func flattenInto(values url.Values, key string, value interface{}) {
	switch typed := value.(type) {
	case nil:
		return
	case string:
		values.Set(key, typed)
	case bool:
		values.Set(key, strconv.FormatBool(typed))
	case time.Time:
		values.Set(key, typed.UTC().Format(constants.TimestampFormat))
	case []string:
		for i, item := range typed {
			values.Set(key+"."+strconv.Itoa(i+1), item)
		}
	case []interface{}:
		for i, item := range typed {
			flattenInto(values, key+"."+strconv.Itoa(i+1), item)
		}
	case map[string]interface{}:
		for name, item := range typed {
			flattenInto(values, key+"."+inflect.ToRemote(name), item)
		}
	case AttributeTree:
		for name, item := range typed {
			flattenInto(values, key+"."+inflect.ToRemote(name), item)
		}
	default:
		values.Set(key, cast.ToString(typed))
	}
}

// jsonValue converts a parameter value for the JSON protocol, inflecting
// nested map keys.
func jsonValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		converted := make(map[string]interface{}, len(typed))

		for name, item := range typed {
			converted[inflect.ToRemote(name)] = jsonValue(item)
		}

		return converted
	case AttributeTree:
		return jsonValue(map[string]interface{}(typed))
	case []interface{}:
		converted := make([]interface{}, len(typed))

		for i, item := range typed {
			converted[i] = jsonValue(item)
		}

		return converted
	default:
		return value
	}
}
