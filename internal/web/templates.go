package web

import (
	"bytes"
	"html/template"

	"github.com/jaminalder/tictactoe-engine/internal/app"
	"github.com/jaminalder/tictactoe-engine/internal/domain"
	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

type templates struct {
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"iter": func(n int) []int {
			a := make([]int, n)
			for i := range a {
				a[i] = i
			}
			return a
		},
		"cellSymbol":   func(m domain.Mark) string { return m.String() },
		"add":          func(a, b int) int { return a + b },
		"mul":          func(a, b int) int { return a * b },
		"difficulties": func() []engine.Difficulty { return []engine.Difficulty{engine.Easy, engine.Medium, engine.Hard} },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic Tac Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	// Define the board template within the same set so game can include it
	template.Must(base.New("board").Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(indexTemplate))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<h1>Tic Tac Toe</h1>
<div hx-ext="sse" sse-connect="/game/{{.ID}}/events">
  <div id="board-slot" sse-swap="board" hx-swap="innerHTML">{{template "board" .}}</div>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, data any) []byte {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.Bytes()
}

// boardData is what the board fragment renders.
type boardData struct {
	ID    string
	Game  app.Snapshot
	Error string
}

// Status is the headline above the board.
func (d boardData) Status() string {
	g := d.Game
	switch {
	case g.Outcome.Result == domain.Win:
		return "Congratulations: " + g.Outcome.Winner.String() + " wins"
	case g.Outcome.Result == domain.Draw:
		return "Draw"
	case g.AIError != "":
		return "Computer could not move: " + g.AIError
	case g.VsAI && g.Turn == g.AIMark:
		return "Computer is thinking…"
	default:
		return g.Turn.String() + " to move"
	}
}

const indexTemplate = `<h1>Tic Tac Toe</h1>
<form action="/game" method="post">
  <label><input type="radio" name="vs_ai" value="true" checked> Play vs AI</label>
  <label><input type="radio" name="vs_ai" value="false"> 2 Players</label>
  <select name="difficulty">
    {{range difficulties}}<option value="{{.}}">{{.}}</option>{{end}}
  </select>
  <button>Create</button>
</form>`

const boardTemplate = `
<div id="board">
  <h2 class="status">{{.Status}}</h2>
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  {{$id := .ID}}{{$game := .Game}}
  {{range $r := iter 3}}
  <div class="row">
    {{range $c := iter 3}}{{$i := add (mul $r 3) $c}}
      <form hx-post="/game/{{$id}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
        <input type="hidden" name="cell" value="{{$i}}">
        <button type="submit" class="boxes">{{cellSymbol (index $game.Board $i)}}</button>
      </form>
    {{end}}
  </div>
  {{end}}
  <div class="mode-controls">
    <form hx-post="/game/{{$id}}/mode" hx-target="#board" hx-swap="outerHTML" method="post">
      <button name="vs_ai" value="true"{{if $game.VsAI}} class="active"{{end}}>Play vs AI</button>
      <button name="vs_ai" value="false"{{if not $game.VsAI}} class="active"{{end}}>2 Players</button>
    </form>
    {{if $game.VsAI}}
    <form hx-post="/game/{{$id}}/difficulty" hx-target="#board" hx-swap="outerHTML" method="post">
      {{range difficulties}}<button name="level" value="{{.}}"{{if eq . $game.Difficulty}} class="active"{{end}}>{{.}}</button>{{end}}
    </form>
    {{end}}
  </div>
  <form hx-post="/game/{{$id}}/reset" hx-target="#board" hx-swap="outerHTML" method="post">
    <button class="reset">Reset</button>
  </form>
</div>
`
