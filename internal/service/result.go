package service

// ConversionResult holds the converted amounts of one request.
type ConversionResult struct {
	Amount         float64
	Source         string
	Base           string
	RatesTimestamp int64
	Output         map[string]float64
}

// Envelope is the response shape for both success and failure.
// On failure Output holds a single "error" key instead of amounts.
type Envelope struct {
	Input  EnvelopeInput  `json:"input"`
	Output map[string]any `json:"output"`
}

// EnvelopeInput echoes the request. Amount is nil when it could not be parsed.
type EnvelopeInput struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// NewEnvelope builds the success envelope of res.
func NewEnvelope(res *ConversionResult) Envelope {
	amount := res.Amount
	output := make(map[string]any, len(res.Output))
	for code, v := range res.Output {
		output[code] = v
	}
	return Envelope{
		Input:  EnvelopeInput{Amount: &amount, Currency: res.Source},
		Output: output,
	}
}

// NewErrorEnvelope builds the failure envelope for err.
func NewErrorEnvelope(amount *float64, currency string, err error) Envelope {
	return Envelope{
		Input:  EnvelopeInput{Amount: amount, Currency: currency},
		Output: map[string]any{"error": publicMessage(err)},
	}
}

// Error returns the error message of a failure envelope.
func (e Envelope) Error() (string, bool) {
	msg, ok := e.Output["error"].(string)
	return msg, ok
}
