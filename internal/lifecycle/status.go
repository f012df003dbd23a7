package lifecycle

// Estados internos de ciclo de vida. Os demais valores chegam da Focus no
// vocabulário dela (autorizado, cancelado, erro_autorizacao, ...) e são
// armazenados como recebidos; status desconhecidos passam adiante sem
// tratamento especial.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
)

// Vocabulário de status terminais reportados pela Focus
const (
	StatusAutorizado      = "autorizado"
	StatusAuthorized      = "authorized"
	StatusRejeitado       = "rejeitado"
	StatusRejected        = "rejected"
	StatusCancelado       = "cancelado"
	StatusCancelled       = "cancelled"
	StatusErroAutorizacao = "erro_autorizacao"
	StatusError           = "error"
)

// Ranques da ordem parcial: submitted < processing < terminais. Status
// desconhecidos recebem o ranque de processing, de modo que avançam sobre
// submitted/processing mas nunca sobre um estado terminal.
const (
	rankSubmitted  = 0
	rankProcessing = 1
	rankTerminal   = 2
)

// Rank retorna a posição de um status na ordem parcial
func Rank(status string) int {
	switch status {
	case StatusSubmitted:
		return rankSubmitted
	case StatusProcessing:
		return rankProcessing
	case StatusAutorizado, StatusAuthorized,
		StatusRejeitado, StatusRejected,
		StatusCancelado, StatusCancelled,
		StatusErroAutorizacao, StatusError:
		return rankTerminal
	default:
		return rankProcessing
	}
}

// IsAuthorized informa se o status pertence ao conjunto de sinônimos de
// autorização reportados pela Focus
func IsAuthorized(status string) bool {
	return status == StatusAutorizado || status == StatusAuthorized
}

// IsCancelled informa se o status representa cancelamento
func IsCancelled(status string) bool {
	return status == StatusCancelado || status == StatusCancelled
}
