package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/percolator-labs/percolator/pkg/instruction"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/processor"
	"github.com/percolator-labs/percolator/pkg/slab"
	"github.com/percolator-labs/percolator/pkg/storage"
)

// Server is a single-slab devnet harness: one in-memory slab.View
// backed by a SlabStore snapshot, fronted by REST and WebSocket.
// TradeCpi is intentionally not exposed over HTTP — it requires a real
// cross-program-call collaborator this harness has no business faking;
// it is exercised end to end by pkg/processor's own tests instead.
type Server struct {
	mu      sync.Mutex
	view    *slab.View
	slabKey [32]byte
	slot    uint64
	proc    *processor.Processor
	store   *storage.SlabStore
	router  *mux.Router
	hub     *Hub
}

// NewServer wraps an already-initialized slab.View for instruction
// submission, snapshotting every successful apply to store.
func NewServer(v *slab.View, slabKey [32]byte, proc *processor.Processor, store *storage.SlabStore) *Server {
	s := &Server{
		view:    v,
		slabKey: slabKey,
		proc:    proc,
		store:   store,
		router:  mux.NewRouter(),
		hub:     NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/engine", s.handleGetEngine).Methods("GET")
	api.HandleFunc("/accounts/{idx}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/instruction", s.handleSubmitInstruction).Methods("POST")
	api.HandleFunc("/oracle", s.handlePushOracle).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server; it blocks until the listener errs.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	log.Printf("[api] devnet harness listening on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, engineInfo(s.view))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.ParseUint(mux.Vars(r)["idx"], 10, 16)
	if err != nil || idx >= slab.MaxAccounts {
		respondError(w, http.StatusBadRequest, "invalid account index", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.view.Bitmap().Get(uint16(idx))
	respondJSON(w, accountInfo(s.view, uint16(idx), used))
}

func (s *Server) handlePushOracle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PriceE6   uint64 `json:"priceE6"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Engine().SetOraclePriceE6(req.PriceE6)
	s.view.Engine().SetOracleTimestamp(req.Timestamp)
	s.persistLocked()
	s.broadcastEngineLocked()

	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	var req InstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	data, err := hex.DecodeString(req.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid hex data", err.Error())
		return
	}

	accounts, err := buildAccounts(instruction.Tag(req.Tag), req.Accounts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid accounts for tag", err.Error())
		return
	}

	ixData := append([]byte{req.Tag}, data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slot++
	applyErr := s.proc.Process(s.view, s.slabKey, s.slot, ixData, accounts, nil)

	entry := storage.WALEntry{Slot: s.slot, Tag: req.Tag, Data: ixData}
	resp := InstructionResponse{Slot: s.slot}
	if applyErr != nil {
		entry.Err = applyErr.Error()
		resp.Status = "rejected"
		resp.Error = applyErr.Error()
		if code, ok := percoerr.CodeOf(applyErr); ok {
			resp.Code = code.String()
		}
	} else {
		resp.Status = "applied"
		s.persistLocked()
		s.broadcastEngineLocked()
	}
	if walErr := s.store.AppendWAL(s.slabKey, entry); walErr != nil {
		log.Printf("[api] wal append failed: %v", walErr)
	}

	respondJSON(w, resp)
}

func (s *Server) persistLocked() {
	if err := s.store.SaveSlab(s.slabKey, s.view.Bytes()); err != nil {
		log.Printf("[api] snapshot save failed: %v", err)
	}
}

func (s *Server) broadcastEngineLocked() {
	s.hub.BroadcastToChannel("engine", EngineUpdate{Type: "engine", Slot: s.slot, State: engineInfo(s.view)})
}

func engineInfo(v *slab.View) EngineStateInfo {
	eng := v.Engine()
	return EngineStateInfo{
		InsuranceFund:   eng.InsuranceFund().String(),
		OraclePriceE6:   eng.OraclePriceE6(),
		OracleTimestamp: eng.OracleTimestamp(),
		LastCrankSlot:   eng.LastCrankSlot(),
		TotalNotional:   eng.TotalNotionalVolume().String(),
		TotalTradeCount: eng.TotalTradeCount(),
		TotalLiqCount:   eng.TotalLiquidationCount(),
		LPSumAbs:        eng.LPSumAbs().String(),
		LPMaxAbs:        eng.LPMaxAbs().String(),
		RiskMetric:      eng.RiskMetric().String(),
	}
}

func accountInfo(v *slab.View, idx uint16, used bool) AccountInfo {
	rec := v.Account(idx)
	info := AccountInfo{Index: idx, Used: used}
	if !used {
		return info
	}
	owner := rec.Owner()
	info.Kind = rec.Kind().String()
	info.Owner = hex.EncodeToString(owner[:])
	info.Balance = rec.CollateralBalance()
	info.PositionSize = rec.PositionSize().String()
	info.AvgEntryPriceE6 = rec.AvgEntryPriceE6()
	info.RealizedPnl = rec.RealizedPnl().String()
	info.Nonce = rec.Nonce()
	return info
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}

// ==============================
// Account-list construction per instruction tag
// ==============================

func parseKey(ref AccountRef) ([32]byte, error) {
	var k [32]byte
	b, err := hex.DecodeString(ref.Key)
	if err != nil {
		return k, err
	}
	if len(b) != 32 {
		return k, fmt.Errorf("account key must be 32 bytes, got %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

func signer(ref AccountRef) processor.Signer {
	k, _ := parseKey(ref)
	return processor.Signer{Key: k, IsSigner: ref.Signer}
}

func requireAccounts(refs []AccountRef, n int) error {
	if len(refs) != n {
		return fmt.Errorf("expected %d accounts, got %d", n, len(refs))
	}
	return nil
}

func buildAccounts(tag instruction.Tag, refs []AccountRef) (any, error) {
	switch tag {
	case instruction.TagInitMarket:
		if err := requireAccounts(refs, 3); err != nil {
			return nil, err
		}
		mint, _ := parseKey(refs[1])
		vault, _ := parseKey(refs[2])
		return processor.InitMarketAccounts{Admin: signer(refs[0]), CollateralMint: mint, VaultTokenAccount: vault}, nil

	case instruction.TagInitUser:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.InitUserAccounts{Owner: signer(refs[0])}, nil

	case instruction.TagInitLP:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.InitLPAccounts{Owner: signer(refs[0])}, nil

	case instruction.TagDeposit:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.DepositAccounts{Owner: signer(refs[0])}, nil

	case instruction.TagWithdraw:
		if err := requireAccounts(refs, 2); err != nil {
			return nil, err
		}
		pda, _ := parseKey(refs[1])
		return processor.WithdrawAccounts{Owner: signer(refs[0]), VaultAuthority: pda}, nil

	case instruction.TagCrank:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.CrankAccounts{Caller: signer(refs[0])}, nil

	case instruction.TagTradeNoCpi:
		if err := requireAccounts(refs, 2); err != nil {
			return nil, err
		}
		return processor.TradeNoCpiAccounts{UserOwner: signer(refs[0]), LPOwner: signer(refs[1])}, nil

	case instruction.TagLiquidate:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.LiquidateAccounts{Liquidator: signer(refs[0])}, nil

	case instruction.TagTopUpInsurance:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.TopUpInsuranceAccounts{Contributor: signer(refs[0])}, nil

	case instruction.TagSetOracleAuthority:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.SetOracleAuthorityAccounts{Admin: signer(refs[0])}, nil

	case instruction.TagPushOraclePrice:
		if err := requireAccounts(refs, 1); err != nil {
			return nil, err
		}
		return processor.PushOraclePriceAccounts{Pusher: signer(refs[0])}, nil

	default:
		return nil, fmt.Errorf("tag %d is not submittable through this harness (TradeCpi requires a real matcher collaborator)", tag)
	}
}
