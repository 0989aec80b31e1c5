package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/extract"
	"github.com/jorge-barreto/syllabot/internal/gateway"
)

// maxContentPrompt bounds how much chapter text is sent to section stages.
const maxContentPrompt = 10000

// streamRecords streams prompt through an Extractor and hands each record to
// handle as soon as it closes. If the stream completes without a single
// streamed record, the whole response is parsed with extract.Recover.
func streamRecords(ctx context.Context, caps *Capabilities, label, prompt string, opts gateway.Options,
	validate extract.Validator, handle func(raw json.RawMessage)) error {

	ex := extract.New(validate, caps.logger().With(zap.String("stage", label)))
	_, err := caps.Stream(ctx, label, prompt, opts, func(delta string) {
		for _, rec := range ex.Feed(delta) {
			handle(rec)
		}
	})
	if err != nil {
		return err
	}
	if ex.Emitted() > 0 {
		return nil
	}

	recs, err := extract.Recover(ex.Finalize(), validate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoRecords, err)
	}
	if len(recs) == 0 {
		return ErrNoRecords
	}
	caps.logger().Info("recovered records from full response", zap.String("stage", label), zap.Int("records", len(recs)))
	for _, rec := range recs {
		handle(rec)
	}
	return nil
}
