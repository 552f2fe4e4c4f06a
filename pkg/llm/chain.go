package llm

import (
	"context"
	"log/slog"
)

// Chain tries classifiers in order until one succeeds.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a classifier chain. At least one classifier is required.
func NewChain(logger *slog.Logger, classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, ErrNoClassifier
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		classifiers: classifiers,
		logger:      logger.With("component", "llm.chain"),
	}, nil
}

// Classify returns the first successful reply.
func (c *Chain) Classify(ctx context.Context, text string) (Reply, error) {
	var errs []error
	for i, cl := range c.classifiers {
		reply, err := cl.Classify(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded", "classifier_index", i)
			}
			return reply, nil
		}
		errs = append(errs, err)
		c.logger.Warn("classifier failed, trying next", "classifier_index", i, "error", err)

		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
	}
	return Reply{}, &ChainError{Errors: errs}
}

// ClassifyOrSafe runs cl and substitutes SafeReply on failure. The error
// is still returned so callers can log it.
func ClassifyOrSafe(ctx context.Context, cl Classifier, text string) (Reply, error) {
	if cl == nil {
		return SafeReply(), ErrNoClassifier
	}
	reply, err := cl.Classify(ctx, text)
	if err != nil {
		return SafeReply(), err
	}
	return reply.Normalize(), nil
}
