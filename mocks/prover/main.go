// Command prover is a stand-in proving backend for local runs and e2e tests.
// It answers POST /prove with structurally valid groth16 artifacts on the
// BN254 curve. They are random field elements and verify nothing.
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"
)

const (
	defaultPort      = "8090"
	defaultAPIKey    = "prover-secret-key"
	defaultLatencyMs = "50"
)

var (
	baseField, _   = new(big.Int).SetString("21888242871839275222246405745257275088696311157297823662689037894645226208583", 10)
	scalarField, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
)

type ProveRequest struct {
	CircuitType  string         `json:"circuitType"`
	Witness      map[string]any `json:"witness"`
	PublicInputs map[string]any `json:"publicInputs"`
}

type Proof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// ProveResponse is the flat artifact: the proof fields and publicSignals
// side by side.
type ProveResponse struct {
	Proof
	PublicSignals []string `json:"publicSignals"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	apiKey    = getEnv("API_KEY", defaultAPIKey)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/prove", handleProve)

	log.Printf("mock prover starting on port %s (latency %dms)", port, latencyMs)

	srv := &http.Server{Addr: ":" + port, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "prover",
	})
}

// handleProve honours a few magic circuit types so tests can drive the
// client's failure handling: "unavailable" returns 503, "malformed" returns
// an artifact off the curve and "slow" sleeps ten times the usual latency.
func handleProve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-API-Key") != apiKey {
		sendError(w, "invalid or missing X-API-Key header", http.StatusUnauthorized)
		return
	}

	var req ProveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CircuitType == "" || req.Witness == nil {
		sendError(w, "circuitType and witness are required", http.StatusBadRequest)
		return
	}

	delay := time.Duration(latencyMs) * time.Millisecond
	switch req.CircuitType {
	case "unavailable":
		sendError(w, "proving cluster unavailable", http.StatusServiceUnavailable)
		return
	case "slow":
		delay *= 10
	}
	select {
	case <-r.Context().Done():
		return
	case <-time.After(delay):
	}

	proof := Proof{
		Protocol: "groth16",
		Curve:    "bn128",
		PiA:      []string{element(baseField), element(baseField), "1"},
		PiB: [][]string{
			{element(baseField), element(baseField)},
			{element(baseField), element(baseField)},
			{"1", "0"},
		},
		PiC: []string{element(baseField), element(baseField), "1"},
	}
	if req.CircuitType == "malformed" {
		proof.PiA[0] = baseField.String()
	}

	writeJSON(w, http.StatusOK, ProveResponse{
		Proof:         proof,
		PublicSignals: publicSignals(req.PublicInputs),
	})
}

func element(modulus *big.Int) string {
	v, err := rand.Int(rand.Reader, modulus)
	if err != nil {
		panic(err)
	}
	return v.String()
}

// publicSignals echoes numeric inputs in key order reduced into Fr. Other
// values become random elements.
func publicSignals(inputs map[string]any) []string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		f, ok := inputs[k].(float64)
		if !ok || f < 0 {
			out = append(out, element(scalarField))
			continue
		}
		v, _ := new(big.Float).SetFloat64(f).Int(nil)
		out = append(out, v.Mod(v, scalarField).String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s=%q, using %s\n", key, value, defaultValue)
		n, _ = strconv.Atoi(defaultValue)
	}
	return n
}
