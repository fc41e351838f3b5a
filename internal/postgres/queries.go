package postgres

const (
	queryAppendEvent = `
		INSERT INTO session_events (id, session_id, seq, type, at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	queryEventHistory = `
		SELECT pos, payload
		FROM session_events
		WHERE session_id = $1
		  AND pos > $2
		ORDER BY pos ASC
		LIMIT $3
	`

	queryUpsertRoom = `
		INSERT INTO session_rooms (
			session_id, room_id, name, status, capacity, duration_seconds, remaining_seconds,
			member_ids, features, analytics, created_at, started_at, ended_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (session_id, room_id) DO UPDATE SET
			name              = EXCLUDED.name,
			status            = EXCLUDED.status,
			capacity          = EXCLUDED.capacity,
			duration_seconds  = EXCLUDED.duration_seconds,
			remaining_seconds = EXCLUDED.remaining_seconds,
			member_ids        = EXCLUDED.member_ids,
			features          = EXCLUDED.features,
			analytics         = EXCLUDED.analytics,
			started_at        = EXCLUDED.started_at,
			ended_at          = EXCLUDED.ended_at,
			updated_at        = now()
	`

	roomColumns = `
		room_id, name, status, capacity, duration_seconds, remaining_seconds,
		member_ids, features, analytics, created_at, started_at, ended_at
	`

	queryGetRoom = `SELECT ` + roomColumns + ` FROM session_rooms WHERE session_id = $1 AND room_id = $2`

	queryListRooms = `SELECT ` + roomColumns + ` FROM session_rooms WHERE session_id = $1 ORDER BY created_at, room_id`
)
