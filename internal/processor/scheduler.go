package processor

import (
	"context"
	"sync"

	"cbzxl/internal/classify"
	"cbzxl/internal/encoder"
)

// convertAll fans eligible images out to the encoder, at most
// opts.Threads at a time. Each image resolves its own distance through the
// policy; smart mode needs the pixel count, which is read from the image
// header just before encoding. Cancellation stops dispatching new work but
// lets in-flight conversions finish.
func (p *Processor) convertAll(ctx context.Context, images []classify.Result) []encoder.Outcome {
	eligible := make([]classify.Result, 0, len(images))
	for _, img := range images {
		if img.Eligible {
			eligible = append(eligible, img)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.opts.Threads)
		results   = make(chan encoder.Outcome, len(eligible))
	)

	for _, img := range eligible {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(img classify.Result) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results <- p.convertOne(ctx, img)
		}(img)
	}

	wg.Wait()
	close(results)

	outcomes := make([]encoder.Outcome, 0, len(eligible))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *Processor) convertOne(ctx context.Context, img classify.Result) encoder.Outcome {
	pixels := 0
	if p.opts.Distance.Smart {
		if count, err := classify.PixelCount(img.Path); err == nil {
			pixels = count
		}
	}

	opts := p.opts.Encoder
	opts.Distance = p.opts.Distance.For(img.Size, pixels)
	return encoder.Convert(ctx, opts, img.Path)
}
