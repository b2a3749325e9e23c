// Copyright 2025 Intmax2 Validity Prover
package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

// QueryHandlers serves the read-only query API (§6). Public read APIs
// return not-found for blocks not yet proven; they never 5xx on stalling
// upstream conditions (§7).
type QueryHandlers struct {
	proofs   *database.ValidityProofRepository
	state    *database.ValidityStateRepository
	deposits *database.DepositRepository
	store    *database.MerkleStore
	logger   *log.Logger
}

func NewQueryHandlers(db *database.Client, logger *log.Logger) *QueryHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[QueryAPI] ", log.LstdFlags)
	}
	return &QueryHandlers{
		proofs:   database.NewValidityProofRepository(db),
		state:    database.NewValidityStateRepository(db),
		deposits: database.NewDepositRepository(db),
		store:    database.NewMerkleStore(db),
		logger:   logger,
	}
}

// HandleGetValidityProof handles GET /validity-proof/{block_number}.
func (h *QueryHandlers) HandleGetValidityProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	blockNumber, err := parseUintSuffix(r.URL.Path, "/validity-proof/")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BLOCK_NUMBER", err.Error())
		return
	}

	proof, err := h.proofs.Get(r.Context(), uint32(blockNumber))
	if err != nil {
		h.logger.Printf("error getting validity proof: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve proof")
		return
	}
	if proof == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no validity proof for block %d", blockNumber))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"block_number": blockNumber,
		"proof":        hex.EncodeToString(proof),
	})
}

// HandleGetBlockNumberByTxTreeRoot handles GET /block-number-by-tx-tree-root/{root}.
func (h *QueryHandlers) HandleGetBlockNumberByTxTreeRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	rootHex := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/block-number-by-tx-tree-root/"), "/")
	root, err := hex.DecodeString(strings.TrimPrefix(rootHex, "0x"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ROOT", "root must be hex-encoded")
		return
	}

	blockNumber, found, err := h.state.BlockByTxTreeRoot(r.Context(), root)
	if err != nil {
		h.logger.Printf("error looking up tx tree root: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to look up root")
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no block embeds this tx tree root")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"block_number": blockNumber})
}

// HandleGetDepositInfo handles GET /deposit-info/{deposit_hash}.
func (h *QueryHandlers) HandleGetDepositInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	hashHex := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/deposit-info/"), "/")
	hash, err := hex.DecodeString(strings.TrimPrefix(hashHex, "0x"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_HASH", "deposit hash must be hex-encoded")
		return
	}

	deposit, err := h.deposits.ByHash(r.Context(), hash)
	if err != nil {
		h.logger.Printf("error getting deposit info: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve deposit")
		return
	}
	if deposit == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no deposit with this hash")
		return
	}

	h.writeJSON(w, http.StatusOK, deposit)
}

// HandleGetAccountMembershipProof handles GET /account-membership-proof/{pubkey}.
// pubkey is the decimal-encoded indexed-tree key. If the key is present,
// the response is a membership proof for its leaf; otherwise it is a
// non-membership proof for the preceding low leaf.
func (h *QueryHandlers) HandleGetAccountMembershipProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/account-membership-proof/"), "/")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_KEY", "pubkey key is required")
		return
	}

	latest, err := h.state.MaxBlockNumber(r.Context())
	if err != nil {
		h.logger.Printf("error reading latest block: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to determine snapshot")
		return
	}
	if latest < 0 {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no reconstructed state yet")
		return
	}
	atTimestamp := int64(latest) + 1

	low, err := h.store.FindLowLeaf(r.Context(), key, atTimestamp)
	if err != nil {
		h.logger.Printf("error finding low leaf: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to locate key")
		return
	}
	if low == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "key is out of the tree's current range")
		return
	}

	proof, err := h.store.Prove(r.Context(), database.TagAccountTree, low.Position, atTimestamp, 32)
	if err != nil {
		h.logger.Printf("error building proof: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to build proof")
		return
	}

	membership := low.Key == key
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"membership":    membership,
		"low_leaf":      low,
		"block_number":  latest,
		"leaf_index":    proof.LeafIndex,
		"siblings":      hexSlice(proof.Siblings),
	})
}

func hexSlice(in [][]byte) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = hex.EncodeToString(b)
	}
	return out
}

func parseUintSuffix(path, prefix string) (uint64, error) {
	s := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func (h *QueryHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}

func (h *QueryHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}
