// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package scoreapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"sharder.org/pocscore/poc/weight"
	"sharder.org/pocscore/server/score"
)

// WeightsResult is the response to the '/weights' API request.
type WeightsResult struct {
	Height int64         `json:"height"`
	Hash   string        `json:"hash"`
	Table  *weight.Table `json:"table"`
}

// MissesResult is the response to the '/misses/{account}' API request, and
// an element of the response to the '/misses' API request.
type MissesResult struct {
	AccountID int64 `json:"accountId"`
	Misses    int64 `json:"misses"`
}

// writeJSON marshals the provided interface and writes the bytes to the
// ResponseWriter. The response code is assumed to be StatusOK.
func writeJSON(w http.ResponseWriter, thing any) {
	writeJSONWithStatus(w, thing, http.StatusOK)
}

// writeJSONWithStatus marshals the provided interface and writes the bytes to
// the ResponseWriter with the specified response code.
func writeJSONWithStatus(w http.ResponseWriter, thing any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(thing); err != nil {
		log.Errorf("JSON encode error: %v", err)
	}
}

func parseAccount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	s := chi.URLParam(r, accountKey)
	account, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid account %q", s), http.StatusBadRequest)
		return 0, false
	}
	return account, true
}

// apiPing is the handler for the '/ping' API request.
func apiPing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, "pong")
}

// apiWeights is the handler for the '/weights' API request.
func (s *Server) apiWeights(w http.ResponseWriter, _ *http.Request) {
	act := s.src.ActiveTable()
	h := act.Table.Hash()
	writeJSON(w, &WeightsResult{
		Height: act.Height,
		Hash:   hex.EncodeToString(h[:]),
		Table:  act.Table,
	})
}

// apiScores is the handler for the '/scores' API request.
func (s *Server) apiScores(w http.ResponseWriter, _ *http.Request) {
	scores := s.src.Scores()
	if scores == nil {
		scores = []*score.PocScore{}
	}
	writeJSON(w, scores)
}

// apiScore is the handler for the '/score/{account}' API request.
func (s *Server) apiScore(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, r)
	if !ok {
		return
	}
	sc, found := s.src.Score(account)
	if !found {
		http.Error(w, fmt.Sprintf("no score for account %d", account), http.StatusNotFound)
		return
	}
	writeJSON(w, sc)
}

// apiMisses is the handler for the '/misses/{account}' API request.
func (s *Server) apiMisses(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, r)
	if !ok {
		return
	}
	n, err := s.src.MissCount(account)
	if err != nil {
		log.Errorf("error retrieving miss count for account %d: %v", account, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &MissesResult{
		AccountID: account,
		Misses:    n,
	})
}

// apiAllMisses is the handler for the '/misses' API request. Accounts are
// listed in ascending order.
func (s *Server) apiAllMisses(w http.ResponseWriter, _ *http.Request) {
	counts, err := s.src.MissCounts()
	if err != nil {
		log.Errorf("error retrieving miss counts: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	res := make([]*MissesResult, 0, len(counts))
	for _, account := range slices.Sorted(maps.Keys(counts)) {
		res = append(res, &MissesResult{
			AccountID: account,
			Misses:    counts[account],
		})
	}
	writeJSON(w, res)
}
