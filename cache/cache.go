// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package cache holds lookups that are expensive to repeat between runs of
// the same process: hostname resolution, interface addresses and the public
// source address.
package cache

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultExpire = 5 * time.Minute
	defaultPurge  = 30 * time.Second
)

// Cache is the process-wide store backing Get and GetWithExpiration.
var Cache = cache.New(defaultExpire, defaultPurge)

// Key joins a namespace and its parts into a cache key, e.g. "dns|example.com|6".
func Key(namespace string, parts ...string) string {
	return strings.Join(append([]string{namespace}, parts...), "|")
}

// Get returns the cached value for key, or calls cb and caches its result
// forever when cb succeeds.
func Get[T any](key string, cb func() (T, error)) (T, error) {
	return GetWithExpiration[T](key, cb, cache.NoExpiration)
}

// GetWithExpiration returns the cached value for key, or calls cb and caches
// its result for expire when cb succeeds. Errors are never cached. An entry
// holding a value of another type is treated as a miss and overwritten.
func GetWithExpiration[T any](key string, cb func() (T, error), expire time.Duration) (T, error) {
	if x, found := Cache.Get(key); found {
		if v, ok := x.(T); ok {
			return v, nil
		}
	}

	res, err := cb()
	if err == nil {
		Cache.Set(key, res, expire)
	}
	return res, err
}

// Forget drops key so the next lookup calls its callback again.
func Forget(key string) {
	Cache.Delete(key)
}
