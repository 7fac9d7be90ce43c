package redis

import (
	goredis "github.com/redis/go-redis/v9"
)

// Each mutation script starts from the same snapshot helper: it reads the
// item hash and voter set into a table shaped like the wire event format.
// Snapshots are taken inside the script, so the old and new images published
// with a change are exactly the pre- and post-states of that mutation. No
// observer ever needs to re-query the store for the old value.
const snapshotHelper = `
local function snapshot(itemKey, votersKey, id)
	local h = redis.call('HGETALL', itemKey)
	local item = { id = id }
	for i = 1, #h, 2 do
		local k = h[i]
		if k == 'score' or k == 'created_at_ms' then
			item[k] = tonumber(h[i+1])
		else
			item[k] = h[i+1]
		end
	end
	local voters = redis.call('SMEMBERS', votersKey)
	if #voters > 0 then
		item.voters = voters
	end
	return item
end
`

// insertItemScript creates the item hash, indexes it, and publishes the
// added event.
// KEYS: [1]=item hash, [2]=voter set, [3]=items index
// ARGV: [1]=id, [2]=name, [3]=score, [4]=created_by, [5]=created_at_ms, [6]=channel
var insertItemScript = goredis.NewScript(snapshotHelper + `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.error_reply('item_exists')
end
redis.call('HSET', KEYS[1], 'name', ARGV[2], 'score', ARGV[3], 'created_by', ARGV[4], 'created_at_ms', ARGV[5])
redis.call('SADD', KEYS[3], ARGV[1])
local item = snapshot(KEYS[1], KEYS[2], ARGV[1])
local payload = cjson.encode({type='added', new=item})
redis.call('PUBLISH', ARGV[6], payload)
return payload
`)

// applyVoteScript checks voter-set membership, increments the score, adds
// the voter, and publishes the changed event, all in one atomic call.
// KEYS: [1]=item hash, [2]=voter set
// ARGV: [1]=user id, [2]=delta, [3]=channel, [4]=item id
var applyVoteScript = goredis.NewScript(snapshotHelper + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('item_not_found')
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	return redis.error_reply('already_voted')
end
local old = snapshot(KEYS[1], KEYS[2], ARGV[4])
redis.call('HINCRBY', KEYS[1], 'score', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[1])
local new = snapshot(KEYS[1], KEYS[2], ARGV[4])
local payload = cjson.encode({type='changed', old=old, new=new})
redis.call('PUBLISH', ARGV[3], payload)
return payload
`)

// retractVoteScript is the inverse: membership required, score adjusted by
// the inverse delta, voter removed.
// KEYS: [1]=item hash, [2]=voter set
// ARGV: [1]=user id, [2]=delta, [3]=channel, [4]=item id
var retractVoteScript = goredis.NewScript(snapshotHelper + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('item_not_found')
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
	return redis.error_reply('no_active_vote')
end
local old = snapshot(KEYS[1], KEYS[2], ARGV[4])
redis.call('HINCRBY', KEYS[1], 'score', ARGV[2])
redis.call('SREM', KEYS[2], ARGV[1])
local new = snapshot(KEYS[1], KEYS[2], ARGV[4])
local payload = cjson.encode({type='changed', old=old, new=new})
redis.call('PUBLISH', ARGV[3], payload)
return payload
`)

// removeItemScript captures the final snapshot, deletes the keys, and
// publishes the removed event.
// KEYS: [1]=item hash, [2]=voter set, [3]=items index
// ARGV: [1]=id, [2]=channel
var removeItemScript = goredis.NewScript(snapshotHelper + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('item_not_found')
end
local item = snapshot(KEYS[1], KEYS[2], ARGV[1])
redis.call('DEL', KEYS[1], KEYS[2])
redis.call('SREM', KEYS[3], ARGV[1])
local payload = cjson.encode({type='removed', old=item})
redis.call('PUBLISH', ARGV[2], payload)
return payload
`)
