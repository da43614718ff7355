package mysql

const insertLocationSQL = `
INSERT INTO locations (destination_id, geo_id, caption, name, name_lower)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE destination_id = destination_id
`

const selectLocationCols = `SELECT destination_id, geo_id, caption, name, name_lower FROM locations `

const getLocationSQL = selectLocationCols + `WHERE destination_id = ?`

const locationsByNameSQL = selectLocationCols + `WHERE name_lower = ? ORDER BY destination_id LIMIT ?`

// Fallback when no normalized name matches: the caption carries region and country.
const locationsByCaptionSQL = selectLocationCols + `WHERE caption LIKE ? ORDER BY destination_id LIMIT ?`

// -----------------------------------------------------------------------------
// SESSIONS
// -----------------------------------------------------------------------------

const insertSessionSQL = `
INSERT INTO sessions (chat_id, command, created_at, version)
VALUES (?, ?, ?, 0)
`

const selectSessionCols = `
SELECT id, chat_id, command, created_at,
       location_id, check_in, check_out,
       price_min, price_max, distance_min, distance_max,
       results_num, photos_num,
       complete, cancelled, version
FROM sessions
`

// At most one search per chat is open; the newest wins if that ever breaks.
const activeSessionSQL = selectSessionCols + `
WHERE chat_id = ? AND complete = 0 AND cancelled = 0
ORDER BY id DESC
LIMIT 1
`

const completedSessionsSQL = selectSessionCols + `
WHERE chat_id = ? AND complete = 1
ORDER BY id DESC
LIMIT ?
`

// updateSessionPrefix is followed by the changed columns and updateSessionSuffix.
const updateSessionPrefix = "UPDATE sessions SET version = version + 1"

const updateSessionSuffix = " WHERE id = ? AND version = ?"

const completeSessionSQL = `
UPDATE sessions SET complete = 1, version = version + 1
WHERE id = ? AND version = ? AND complete = 0 AND cancelled = 0
`

const cancelSessionSQL = `
UPDATE sessions SET cancelled = 1, version = version + 1
WHERE chat_id = ? AND complete = 0 AND cancelled = 0
`

const sessionVersionSQL = `SELECT version FROM sessions WHERE id = ?`

// -----------------------------------------------------------------------------
// HOTELS
// -----------------------------------------------------------------------------

const insertHotelSQL = `
INSERT INTO hotels (id, name, address, star_rating, distance)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE id = id
`

const insertSearchResultSQL = `
INSERT INTO search_results (session_id, hotel_id, price, url)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  price = VALUES(price),
  url   = VALUES(url)
`

const listSearchResultsSQL = `
SELECT r.session_id, r.price, r.url,
       h.id, h.name, h.address, h.star_rating, h.distance
FROM search_results r
JOIN hotels h ON h.id = r.hotel_id
WHERE r.session_id = ?
ORDER BY r.seq
`

const insertPhotosPrefix = "INSERT INTO hotel_photos (image_id, hotel_id, base_url, position)\nVALUES "

const insertPhotosOnDup = " ON DUPLICATE KEY UPDATE base_url = VALUES(base_url)"

const hotelPhotosSQL = `
SELECT image_id, hotel_id, base_url
FROM hotel_photos
WHERE hotel_id = ?
ORDER BY position, image_id
LIMIT ?
`
