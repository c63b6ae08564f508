package gateway

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/txupdate/internal/logger"
	"github.com/CedrosPay/txupdate/internal/txupdate"
)

// LambdaHandler is the function signature registered with lambda.Start.
type LambdaHandler func(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error)

// NewLambdaHandler binds h to the Lambda runtime. Every outcome, including
// failures, is returned as a proxy response; the error result is always nil so
// API Gateway never substitutes its own 502.
func NewLambdaHandler(h *txupdate.Handler, log zerolog.Logger) LambdaHandler {
	return func(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
		reqLogger := log
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			ctx = logger.WithRequestID(ctx, lc.AwsRequestID)
			reqLogger = log.With().
				Str("request_id", lc.AwsRequestID).
				Str("function", lambdacontext.FunctionName).
				Logger()
		}
		ctx = logger.WithContext(ctx, reqLogger)

		req := Decode(event)
		reqLogger.Debug().
			Str("method", req.Method).
			Int("body_bytes", len(req.Body)).
			Msg("lambda.invocation")

		return Encode(h.Handle(ctx, req)), nil
	}
}
