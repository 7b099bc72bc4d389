package postgres

const roomColumns = `id, public_token, name, creator_id, password_hash, max_participants, status, created_at, ended_at`

// ключ advisory lock, сериализующий создание комнат (проверка лимита + insert)
const createRoomLockKey int64 = 0x726f6f6d67617465

const (
	qLockRoomCreation = `SELECT pg_advisory_xact_lock($1)`

	qCountRoomsByStatus = `SELECT COUNT(*) FROM rooms WHERE status = $1`

	qInsertRoom = `
		INSERT INTO rooms (id, public_token, name, creator_id, password_hash, max_participants, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	qInsertHost = `
		INSERT INTO room_participants (room_id, user_id, joined_at, is_host)
		VALUES ($1, $2, $3, true)`

	qTokenExists = `SELECT EXISTS(SELECT 1 FROM rooms WHERE public_token = $1)`

	qRoomByToken = `SELECT ` + roomColumns + ` FROM rooms WHERE public_token = $1`
	qRoomByID    = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	qListRooms = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE ($1 = '' OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2
		       OR (created_at = $2 AND id < $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	qListActiveCreatedBefore = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE status = 'active' AND ($1::timestamptz IS NULL OR created_at < $1)
		ORDER BY created_at ASC`

	qEndRoom = `
		UPDATE rooms SET status = 'ended', ended_at = $2
		WHERE id = $1 AND status = 'active'`

	qRoomStatus = `SELECT status FROM rooms WHERE id = $1`

	// блокируем строку комнаты: параллельные Join/EndIfIdle по той же комнате ждут
	qLockRoom = `SELECT status, max_participants FROM rooms WHERE id = $1 FOR UPDATE`

	qCloseRoomParticipants = `
		UPDATE room_participants SET left_at = $2
		WHERE room_id = $1 AND left_at IS NULL`
)

const participantColumns = `id, room_id, user_id, joined_at, left_at, is_host`

const (
	qCountActive = `SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND left_at IS NULL`

	qFindActive = `
		SELECT ` + participantColumns + `
		FROM room_participants
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`

	qInsertParticipant = `
		INSERT INTO room_participants (room_id, user_id, joined_at, is_host)
		VALUES ($1, $2, $3, false)
		RETURNING id`

	qLeave = `
		UPDATE room_participants SET left_at = $3
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`

	qLeaveAll = `
		UPDATE room_participants SET left_at = $2
		WHERE user_id = $1 AND left_at IS NULL
		RETURNING room_id`

	qActiveRoomsOf = `
		SELECT room_id FROM room_participants
		WHERE user_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC`

	qListActiveDetailed = `
		SELECT p.user_id, u.display_name, u.avatar_url, p.joined_at, p.is_host
		FROM room_participants AS p
		LEFT JOIN users AS u ON u.id = p.user_id
		WHERE p.room_id = $1 AND p.left_at IS NULL
		ORDER BY p.joined_at ASC, p.id ASC`
)

const (
	qInsertMessage = `
		INSERT INTO room_messages (id, room_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	qHistory = `
		SELECT id, room_id, user_id, text, created_at
		FROM room_messages
		WHERE room_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2
		       OR (created_at = $2 AND id < $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`
)

const (
	qInsertOperation = `
		INSERT INTO admin_operations (admin_id, kind, target_user_id, target_room_id, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	qListOperations = `
		SELECT id, admin_id, kind, target_user_id, target_room_id, reason, detail, created_at
		FROM admin_operations
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
)
