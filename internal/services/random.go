package services

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// Rand produces uniformly distributed integers in [0, n). Game outcomes
// are always computed from a Rand; the verification oracle is never on
// that path.
type Rand interface {
	IntN(n int) int
}

// LocalRand draws from the process-local PRNG and returns immediately.
type LocalRand struct{}

func (LocalRand) IntN(n int) int {
	return rand.Intn(n)
}

// OracleMirror wraps another Rand and mirrors every draw to an external
// verification oracle on a detached goroutine. Oracle failures are logged
// and otherwise ignored; the returned value is always the wrapped draw.
type OracleMirror struct {
	Next    Rand
	BaseURL string
	Client  *http.Client
}

func NewOracleMirror(next Rand, baseURL string) *OracleMirror {
	return &OracleMirror{
		Next:    next,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func (o *OracleMirror) IntN(n int) int {
	v := o.Next.IntN(n)
	if o.BaseURL != "" {
		go o.mirror(n, v)
	}
	return v
}

type oracleResponse struct {
	Success      bool `json:"success"`
	RandomNumber int  `json:"randomNumber"`
}

func (o *OracleMirror) mirror(n, drawn int) {
	resp, err := o.Client.Get(fmt.Sprintf("%s/random", o.BaseURL))
	if err != nil {
		log.Printf("random oracle unreachable: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("random oracle returned status %d", resp.StatusCode)
		return
	}

	var parsed oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("random oracle returned bad payload: %v", err)
		return
	}
	if !parsed.Success {
		log.Printf("random oracle indicated failure for draw %d of %d", drawn, n)
	}
}
