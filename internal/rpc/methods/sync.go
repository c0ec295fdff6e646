package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/utils"
)

// SyncHandler handles clock synchronization RPC methods.
type SyncHandler struct {
	syncMgr *managers.SyncManager
	logger  *utils.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncMgr *managers.SyncManager, logger *utils.Logger) *SyncHandler {
	return &SyncHandler{
		syncMgr: syncMgr,
		logger:  logger,
	}
}

// RegisterMethods registers the sync RPC methods.
func (h *SyncHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	rpc.Register(hr, rpc.MethodSyncPing, h.Ping)
	rpc.Register(hr, rpc.MethodSyncReport, h.Report)
}

// Ping timestamps a client's sync probe. T1 is taken as early as possible and
// T2 as late as possible so the client's offset estimate brackets only the
// network, not our processing time.
func (h *SyncHandler) Ping(ctx context.Context, client *rpc.Client, p *models.SyncPingRequest) (any, error) {
	serverT1 := utils.NowMs()

	if p.ClientT0 <= 0 {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "clientT0 is required", nil)
	}

	// Refresh the stored offset; the RTT survives from the last report.
	record := &models.SyncRecord{
		ClientID: client.ID,
		OffsetMs: serverT1 - p.ClientT0,
	}
	if existing, err := h.syncMgr.Get(ctx, client.ID); err == nil && existing != nil {
		record.RTTMs = existing.RTTMs
	}
	record.UpdatedAtMs = utils.NowMs()
	if err := h.syncMgr.Store(ctx, client.ID, record); err != nil {
		h.logger.Error("Failed to store sync record", err, "clientID", client.ID)
	}

	return models.SyncPongResponse{
		ClientT0: p.ClientT0,
		ServerT1: serverT1,
		ServerT2: utils.NowMs(),
	}, nil
}

// Report stores the round-trip time the client measured from the last ping.
func (h *SyncHandler) Report(ctx context.Context, client *rpc.Client, p *models.SyncReportRequest) (any, error) {
	if p.RTTMs < 0 {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "rttMs must not be negative", nil)
	}

	record := &models.SyncRecord{
		ClientID:    client.ID,
		RTTMs:       p.RTTMs,
		UpdatedAtMs: utils.NowMs(),
	}
	if existing, err := h.syncMgr.Get(ctx, client.ID); err == nil && existing != nil {
		record.OffsetMs = existing.OffsetMs
	}
	if err := h.syncMgr.Store(ctx, client.ID, record); err != nil {
		h.logger.Error("Failed to store sync record", err, "clientID", client.ID)
		return nil, err
	}

	return true, nil
}
