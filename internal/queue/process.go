package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/pipeline"
)

// ProcessLoadMessage handles one load request. A returned error sends
// the message down the retry path.
func ProcessLoadMessage(ctx context.Context, loader *pipeline.Loader, body string) error {
	var msg LoadSystemMsg
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return fmt.Errorf("invalid load message: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &msg); err != nil {
			return fmt.Errorf("invalid load message: %w", err)
		}
	}

	if msg.All {
		batch, err := loader.LoadAllSystems(ctx)
		if err != nil {
			return err
		}
		logger.Info("Queued batch load finished",
			"succeeded", batch.Succeeded,
			"failed", batch.Failed,
		)
		if batch.Failed > 0 {
			return fmt.Errorf("batch load failed for %d systems", batch.Failed)
		}
		return nil
	}

	if msg.SystemID == "" {
		return fmt.Errorf("load message names no system")
	}

	_, err := loader.LoadSystemData(ctx, msg.SystemID)
	return err
}
