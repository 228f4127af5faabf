package webhook

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("response is not a JSON object")

// Normalize unwraps the shapes the automation layer returns and yields the
// payload object. Accepted: {...}, {"json":{...}}, [{...}] and [{"json":{...}}].
// An empty body normalizes to an empty object so callers can still rely on
// the HTTP status alone.
func Normalize(body []byte) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errMalformed
	}

	res := gjson.ParseBytes(body)
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return gjson.Result{}, errMalformed
		}
		res = items[0]
	}
	if wrapped := res.Get("json"); wrapped.IsObject() {
		res = wrapped
	}
	if !res.IsObject() {
		return gjson.Result{}, errMalformed
	}
	return res, nil
}

// firstString returns the first non-empty string among the given paths.
func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// succeeded reads the success marker. A missing marker is treated as success
// only when allowMissing is set; the posting endpoints rely on HTTP status.
func succeeded(res gjson.Result, allowMissing bool) bool {
	v := res.Get("success")
	if !v.Exists() {
		return allowMissing
	}
	return v.Bool()
}
