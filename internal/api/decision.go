package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

//go:embed decision.schema.json
var decisionSchemaJSON string

var decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)

// maxDecisionBody caps decision payloads.
const maxDecisionBody = 64 << 10

// decisionFields are the accepted form and JSON keys, in Decision order.
var decisionFields = [5]string{"g", "t", "r", "tech_invest", "export_boost"}

// parseDecision reads a decision from a JSON or form request. Malformed
// input yields the zero decision with defaulted set; the turn still runs.
func parseDecision(r *http.Request) (d economy.Decision, defaulted bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return decodeDecisionJSON(io.LimitReader(r.Body, maxDecisionBody))
	}
	return decodeDecisionForm(r)
}

// decodeDecisionJSON validates the payload against the decision schema
// before decoding it.
func decodeDecisionJSON(body io.Reader) (economy.Decision, bool) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return economy.Decision{}, true
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return economy.Decision{}, true
	}
	if err := decisionSchema.Validate(doc); err != nil {
		return economy.Decision{}, true
	}

	var d economy.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return economy.Decision{}, true
	}
	if err := d.Validate(); err != nil {
		return economy.Decision{}, true
	}
	return d, false
}

// decodeDecisionForm reads urlencoded or query fields. Missing fields are
// zero; any unparsable or unknown field zeroes the whole decision, as the
// schema does for JSON.
func decodeDecisionForm(r *http.Request) (economy.Decision, bool) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxDecisionBody)
	if err := r.ParseForm(); err != nil {
		return economy.Decision{}, true
	}
	for key := range r.Form {
		if !slices.Contains(decisionFields[:], key) {
			return economy.Decision{}, true
		}
	}

	var vals [5]float64
	for i, key := range decisionFields {
		raw := strings.TrimSpace(r.Form.Get(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return economy.Decision{}, true
		}
		vals[i] = v
	}

	d := economy.Decision{G: vals[0], T: vals[1], R: vals[2], TechInvest: vals[3], ExportBoost: vals[4]}
	if err := d.Validate(); err != nil {
		return economy.Decision{}, true
	}
	return d, false
}
