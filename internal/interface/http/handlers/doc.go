// Package handlers contains the gin handlers and middleware of the leveling
// HTTP API.
//
// Routes (mounted by the server):
//
//	GET  /health
//	GET  /ready
//	GET  /api/v1/guilds/:guild/members/:member
//	POST /api/v1/guilds/:guild/members/:member/xp      {"op": "add|subtract|set", "amount": n}
//	POST /api/v1/guilds/:guild/members/:member/level   {"op": "add|subtract|set", "amount": n}
//	GET  /api/v1/guilds/:guild/members/:member/next-level
//	GET  /api/v1/guilds/:guild/members/:member/rank
//	GET  /api/v1/guilds/:guild/leaderboard?limit=n
//
// Every response uses the JSONResponse envelope. Engine errors map to
// statuses as follows: validation 400, not found 404, insufficient balance
// 409, not ready 503, store failure 502.
package handlers
