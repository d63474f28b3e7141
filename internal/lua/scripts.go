package lua

// TryLock acquires or re-enters a reentrant lock.
// KEYS[1] lock name; ARGV[1] lease ms; ARGV[2] owner.
const TryLock = `
if (redis.call('exists', KEYS[1]) == 0) or (redis.call('hexists', KEYS[1], ARGV[2]) == 1) then
    redis.call('hincrby', KEYS[1], ARGV[2], 1)
    redis.call('pexpire', KEYS[1], ARGV[1])
    return 1
end
return 0
`

// Unlock decrements the hold count of the owner and deletes the lock at zero.
// Returns -1 when the owner does not hold the lock, 0 when still held, 1 when released.
// KEYS[1] lock name; ARGV[1] owner; ARGV[2] lease ms.
const Unlock = `
if redis.call('hexists', KEYS[1], ARGV[1]) == 0 then
    return -1
end
local count = redis.call('hincrby', KEYS[1], ARGV[1], -1)
if count > 0 then
    redis.call('pexpire', KEYS[1], ARGV[2])
    return 0
end
redis.call('del', KEYS[1])
return 1
`

// Refresh extends the lease when the owner holds the lock.
// KEYS[1] lock name; ARGV[1] owner field; ARGV[2] lease ms.
const Refresh = `
if redis.call('hexists', KEYS[1], ARGV[1]) == 1 then
    return redis.call('pexpire', KEYS[1], ARGV[2])
end
return 0
`

// FairTryLock grants the lock only to the head of the waiter queue.
// KEYS[1] lock name; KEYS[2] waiter queue; KEYS[3] waiter timeouts.
// ARGV[1] lease ms; ARGV[2] owner; ARGV[3] waiter timeout ms; ARGV[4] now ms.
const FairTryLock = `
while true do
    local first = redis.call('lindex', KEYS[2], 0)
    if first == false then
        break
    end
    local timeout = tonumber(redis.call('zscore', KEYS[3], first))
    if timeout ~= nil and timeout > tonumber(ARGV[4]) then
        break
    end
    redis.call('zrem', KEYS[3], first)
    redis.call('lpop', KEYS[2])
end

if redis.call('exists', KEYS[1]) == 0 then
    local first = redis.call('lindex', KEYS[2], 0)
    if first == false or first == ARGV[2] then
        if first == ARGV[2] then
            redis.call('lpop', KEYS[2])
        end
        redis.call('zrem', KEYS[3], ARGV[2])
        redis.call('hset', KEYS[1], ARGV[2], 1)
        redis.call('pexpire', KEYS[1], ARGV[1])
        return 1
    end
end

if redis.call('hexists', KEYS[1], ARGV[2]) == 1 then
    redis.call('hincrby', KEYS[1], ARGV[2], 1)
    redis.call('pexpire', KEYS[1], ARGV[1])
    return 1
end

if redis.call('zscore', KEYS[3], ARGV[2]) == false then
    redis.call('rpush', KEYS[2], ARGV[2])
end
redis.call('zadd', KEYS[3], tonumber(ARGV[4]) + tonumber(ARGV[3]), ARGV[2])
redis.call('pexpire', KEYS[2], ARGV[3])
redis.call('pexpire', KEYS[3], ARGV[3])
return 0
`

// FairCancel removes a waiter that gave up from the queue.
// KEYS[2] waiter queue; KEYS[3] waiter timeouts; ARGV[1] owner.
const FairCancel = `
redis.call('lrem', KEYS[2], 0, ARGV[1])
redis.call('zrem', KEYS[3], ARGV[1])
return 1
`

// ReadTryLock acquires the shared side of a read/write lock. The writer
// itself may also take the read side.
// KEYS[1] lock name; ARGV[1] lease ms; ARGV[2] reader field; ARGV[3] writer field.
const ReadTryLock = `
local mode = redis.call('hget', KEYS[1], 'mode')
if mode == false then
    redis.call('hset', KEYS[1], 'mode', 'read')
    redis.call('hincrby', KEYS[1], ARGV[2], 1)
    redis.call('pexpire', KEYS[1], ARGV[1])
    return 1
end
if mode == 'read' or (mode == 'write' and redis.call('hexists', KEYS[1], ARGV[3]) == 1) then
    redis.call('hincrby', KEYS[1], ARGV[2], 1)
    local ttl = redis.call('pttl', KEYS[1])
    redis.call('pexpire', KEYS[1], math.max(ttl, tonumber(ARGV[1])))
    return 1
end
return 0
`

// ReadUnlock releases one hold of the shared side.
// KEYS[1] lock name; ARGV[1] reader field; ARGV[2] lease ms.
const ReadUnlock = `
if redis.call('hexists', KEYS[1], ARGV[1]) == 0 then
    return -1
end
local count = redis.call('hincrby', KEYS[1], ARGV[1], -1)
if count == 0 then
    redis.call('hdel', KEYS[1], ARGV[1])
end
if redis.call('hlen', KEYS[1]) == 1 then
    redis.call('del', KEYS[1])
    return 1
end
return 0
`

// WriteTryLock acquires the exclusive side of a read/write lock.
// KEYS[1] lock name; ARGV[1] lease ms; ARGV[2] writer field.
const WriteTryLock = `
local mode = redis.call('hget', KEYS[1], 'mode')
if mode == false then
    redis.call('hset', KEYS[1], 'mode', 'write')
    redis.call('hset', KEYS[1], ARGV[2], 1)
    redis.call('pexpire', KEYS[1], ARGV[1])
    return 1
end
if mode == 'write' and redis.call('hexists', KEYS[1], ARGV[2]) == 1 then
    redis.call('hincrby', KEYS[1], ARGV[2], 1)
    redis.call('pexpire', KEYS[1], ARGV[1])
    return 1
end
return 0
`

// WriteUnlock releases one hold of the exclusive side. Read holds taken by
// the writer survive the release and downgrade the lock to read mode.
// KEYS[1] lock name; ARGV[1] writer field; ARGV[2] lease ms.
const WriteUnlock = `
local mode = redis.call('hget', KEYS[1], 'mode')
if mode ~= 'write' or redis.call('hexists', KEYS[1], ARGV[1]) == 0 then
    return -1
end
local count = redis.call('hincrby', KEYS[1], ARGV[1], -1)
if count > 0 then
    redis.call('pexpire', KEYS[1], ARGV[2])
    return 0
end
redis.call('hdel', KEYS[1], ARGV[1])
if redis.call('hlen', KEYS[1]) == 1 then
    redis.call('del', KEYS[1])
    return 1
end
redis.call('hset', KEYS[1], 'mode', 'read')
return 1
`
