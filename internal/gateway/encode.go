package gateway

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/CedrosPay/txupdate/internal/txupdate"
)

// Encode renders a Response in the proxy integration format. The same shape is
// accepted by REST APIs and HTTP APIs.
func Encode(resp txupdate.Response) events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode,
		Headers:         headers,
		Body:            resp.Body,
		IsBase64Encoded: false,
	}
}
