// Package agenttest はテスト用に決まった応答を返す Agent を提供します。
package agenttest

import (
	"context"
	"iter"
	"sync"
	"time"
	"unicode/utf8"

	"policy-deliberation-api/pkg/services"
)

// Reply は1回の生成呼び出しに対する応答です。
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration // 最初の断片を返すまでの待ち時間
}

// Handler はペルソナと指示から応答を決めます。
type Handler func(persona services.Persona, instruction string) Reply

// Call は記録された呼び出しです。
type Call struct {
	Persona     services.Persona
	Instruction string
}

// Agent は Handler の応答を断片に分けて返す services.Agent です。
type Agent struct {
	Handler   Handler
	ChunkSize int // 1断片あたりの文字数（既定 16）

	mu    sync.Mutex
	calls []Call
}

// New は Handler を使う Agent を作成します。
func New(h Handler) *Agent {
	return &Agent{Handler: h}
}

// Generate は services.Agent を実装します。
func (a *Agent) Generate(ctx context.Context, persona services.Persona, instruction string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		a.mu.Lock()
		a.calls = append(a.calls, Call{Persona: persona, Instruction: instruction})
		a.mu.Unlock()

		reply := a.Handler(persona, instruction)
		if reply.Delay > 0 {
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case <-time.After(reply.Delay):
			}
		}
		if reply.Err != nil {
			yield("", reply.Err)
			return
		}
		for _, chunk := range split(reply.Text, a.chunkSize()) {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Calls は記録済みの呼び出しのコピーを返します。
func (a *Agent) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallsFor は指定ロールの呼び出し回数を返します。
func (a *Agent) CallsFor(role string) int {
	n := 0
	for _, c := range a.Calls() {
		if c.Persona.Role == role {
			n++
		}
	}
	return n
}

func (a *Agent) chunkSize() int {
	if a.ChunkSize <= 0 {
		return 16
	}
	return a.ChunkSize
}

// split は文字単位で text を分割します。
func split(text string, size int) []string {
	if text == "" {
		return nil
	}
	var out []string
	for len(text) > 0 {
		n, i := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		out = append(out, text[:i])
		text = text[i:]
	}
	return out
}
