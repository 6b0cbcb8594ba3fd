package main

// Project is one portfolio entry rendered in the projects section.
type Project struct {
	Name    string
	Summary string
	Tech    string
	Repo    string
}

// Skill is one entry in the skills grid.
type Skill struct {
	Name string
	Note string
}

var (
	HeroTagline = "Backend engineer who likes small services, boring deploys, and fast feedback loops."

	AboutMe = `I build server-side software in Go, mostly the unglamorous kind: APIs, relays,
	background workers, and the glue between them. I care about systems you can reason about
	at 2am, which usually means fewer moving parts and better logs.
	Away from the keyboard I'm either on a bike, at a climbing wall, or reading about how
	some piece of infrastructure failed in an interesting way.`

	ContactIntro = `Have a project in mind, a question about something I built, or just want to
	say hello? Drop me a line and I'll get back to you.`

	Skills = []Skill{
		{Name: "Go", Note: "services, CLIs, concurrency"},
		{Name: "SQL & SQLite", Note: "schema design, migrations"},
		{Name: "HTTP & WebSockets", Note: "REST APIs, live channels"},
		{Name: "Email infrastructure", Note: "SMTP, transactional APIs"},
		{Name: "Linux & deployment", Note: "systemd, containers, CI"},
		{Name: "Observability", Note: "structured logs, tracing"},
	}

	Projects = []Project{
		{
			Name: "wirelog",
			Summary: `A self-hosted uptime and latency monitor. Probes run on a worker pool,
	results land in SQLite, and a live dashboard streams updates over a WebSocket so the
	graphs move without polling.`,
			Tech: "Go, WebSockets, SQLite",
			Repo: "https://github.com/finnvoss/wirelog",
		},
		{
			Name: "postbox",
			Summary: `A tiny mail relay for side projects: one JSON endpoint in front of SMTP
	or a transactional API, with per-sender rate limits and a searchable archive of
	everything it ever delivered.`,
			Tech: "Go, SMTP, REST",
			Repo: "https://github.com/finnvoss/postbox",
		},
		{
			Name: "shelfctl",
			Summary: `A command-line catalog for a home library. Scans ISBNs, pulls metadata,
	and answers "do I already own this?" from the phone in a bookshop, backed by a
	single-file database that syncs over Syncthing.`,
			Tech: "Go, CLI, SQLite",
			Repo: "https://github.com/finnvoss/shelfctl",
		},
		{
			Name: "this site",
			Summary: `The page you are reading: a Go service that renders the portfolio,
	tracks which section you are looking at over a live channel, and relays the contact
	form to my inbox. No frontend framework, just a little vanilla JavaScript.`,
			Tech: "Go, Gin, WebSockets",
			Repo: "https://github.com/finnvoss/voss-dev",
		},
	}
)
