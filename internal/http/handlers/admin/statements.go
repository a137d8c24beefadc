package admin

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/reconciliation"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/statement"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/storage"
)

const maxStatementSize = 10 << 20

type StatementsHandler struct {
	Logger  *slog.Logger
	Recon   *reconciliation.Service
	Archive storage.Archive // optional
}

func NewStatementsHandler(logger *slog.Logger, recon *reconciliation.Service, archive storage.Archive) *StatementsHandler {
	return &StatementsHandler{Logger: logger, Recon: recon, Archive: archive}
}

type processBody struct {
	Transactions []statement.Transaction `json:"transactions" binding:"required,min=1"`
	AutoConfirm  bool                    `json:"auto_confirm"`
	BankID       string                  `json:"bank_id" binding:"max=64"`
}

// POST /functions/v1/process-bank-statement
func (h *StatementsHandler) Process(c *gin.Context) {
	var in processBody
	if !handlers.BindJSON(c, &in) {
		return
	}
	txs := make([]statement.Transaction, 0, len(in.Transactions))
	for _, t := range in.Transactions {
		if t.Valid() {
			txs = append(txs, t)
		}
	}
	if len(txs) == 0 {
		middleware.Fail(c, apperr.InvalidErr("Nenhuma transação válida encontrada.", nil))
		return
	}
	h.run(c, reconciliation.Input{Transactions: txs, AutoConfirm: in.AutoConfirm, BankID: in.BankID})
}

// POST /api/admin/bank-statements (multipart: file, auto_confirm, bank_id)
func (h *StatementsHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Envie o arquivo do extrato.", map[string]string{"file": "Arquivo obrigatório."}))
		return
	}
	if fh.Size > maxStatementSize {
		middleware.Fail(c, apperr.InvalidErr("Arquivo muito grande.", map[string]string{"file": "Máximo de 10 MB."}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	content, err := io.ReadAll(io.LimitReader(f, maxStatementSize))
	f.Close()
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	txs, err := statement.ParseFile(content, fh.Filename)
	if errors.Is(err, statement.ErrNoTransactions) {
		middleware.Fail(c, apperr.InvalidErr("Nenhuma transação encontrada no arquivo.", map[string]string{"file": "Formato não reconhecido."}))
		return
	}
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	autoConfirm, _ := strconv.ParseBool(c.PostForm("auto_confirm"))
	bankID := c.PostForm("bank_id")

	var key string
	if h.Archive != nil {
		res, err := h.Archive.Put(c.Request.Context(), bytes.NewReader(content), storage.PutInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        int64(len(content)),
			BankID:      bankID,
		})
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			middleware.Fail(c, apperr.InvalidErr("Tipo de arquivo não suportado.", map[string]string{"file": "Use OFX, CSV, TXT, XLS ou XLSX."}))
			return
		case err != nil:
			// the run is still useful without the archived copy
			h.Logger.WarnContext(c.Request.Context(), "statement archive failed", "filename", fh.Filename, "err", err)
		default:
			key = res.Key
		}
	}

	h.run(c, reconciliation.Input{Transactions: txs, AutoConfirm: autoConfirm, BankID: bankID, FileKey: key})
}

func (h *StatementsHandler) run(c *gin.Context, in reconciliation.Input) {
	in.Actor = "admin:" + middleware.AdminSubject(c)
	out, err := h.Recon.Process(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	handlers.OK(c, out)
}

type runDTO struct {
	ID                    string `json:"id"`
	BankID                string `json:"bank_id"`
	FileKey               string `json:"file_key,omitempty"`
	Actor                 string `json:"actor"`
	AutoConfirm           bool   `json:"auto_confirm"`
	TransactionsProcessed int    `json:"transactions_processed"`
	TransactionsSkipped   int    `json:"transactions_skipped"`
	OrdersChecked         int    `json:"orders_checked"`
	Matched               int    `json:"matched"`
	Confirmed             int    `json:"confirmed"`
	CreatedAt             string `json:"created_at"`
}

// GET /api/admin/reconciliation-runs?limit=
func (h *StatementsHandler) Runs(c *gin.Context) {
	runs, err := h.Recon.ListRuns(c.Request.Context(), handlers.ParseInt(c.Query("limit"), 20))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, runDTO{
			ID:                    r.ID,
			BankID:                r.BankID,
			FileKey:               ptrStr(r.FileKey),
			Actor:                 r.Actor,
			AutoConfirm:           r.AutoConfirm,
			TransactionsProcessed: r.TransactionsProcessed,
			TransactionsSkipped:   r.TransactionsSkipped,
			OrdersChecked:         r.OrdersChecked,
			Matched:               r.Matched,
			Confirmed:             r.Confirmed,
			CreatedAt:             r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	handlers.OK(c, gin.H{"runs": out})
}
