package view

import (
	"github.com/kitbuilder587/abn-search/internal/query"
)

// State - что показывает интерфейс поиска. Ровно одно из пяти.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateError
	StateEmpty
	StateResults
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StateResults:
		return "results"
	default:
		return "idle"
	}
}

// Select выбирает состояние по отправленному запросу и результату хука.
// Пока ничего не отправлено - только hero и строка поиска.
func Select(submitted string, res query.Result) State {
	if submitted == "" {
		return StateIdle
	}

	switch res.Status {
	case query.StatusError:
		return StateError
	case query.StatusSuccess:
		if res.Data == nil || res.Data.IsEmpty() {
			return StateEmpty
		}
		return StateResults
	default:
		// idle для непустого запроса значит, что запрос еще не ушел
		return StateLoading
	}
}
