//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package lock

import (
	"github.com/hashicorp/consul/api"
)

// ConsulLock is a lock materialized as a KV pair in Consul holding its Owner
type ConsulLock struct {
	kv  *api.KV
	key string

	// index is the ModifyIndex of the pair written by TryLock
	index uint64
}

// InitConsulLock builds a ConsulLock with the name argument as key
func InitConsulLock(consulAddress, name string) (Lock, error) {
	client, err := api.NewClient(&api.Config{Address: consulAddress})
	if err != nil {
		return nil, err
	}
	return &ConsulLock{kv: client.KV(), key: name}, nil
}

// TryLock writes the key only if it does not exist yet
func (cl *ConsulLock) TryLock() error {
	ok, _, err := cl.kv.CAS(&api.KVPair{Key: cl.key, Value: currentOwner(), ModifyIndex: 0}, nil)
	if err != nil {
		return err
	}

	pair, _, err := cl.kv.Get(cl.key, nil)
	if err != nil {
		return err
	}
	if !ok {
		var record []byte
		if pair != nil {
			record = pair.Value
		}
		return lockHeld(cl.key, record)
	}
	if pair != nil {
		cl.index = pair.ModifyIndex
	}
	return nil
}

// Unlock deletes the key, failing with api.ErrLockNotHeld when it is absent
// or was rewritten since this lock wrote it
func (cl *ConsulLock) Unlock() error {
	pair, _, err := cl.kv.Get(cl.key, nil)
	if err != nil {
		return err
	}
	if pair == nil || pair.ModifyIndex != cl.index {
		return api.ErrLockNotHeld
	}

	ok, _, err := cl.kv.DeleteCAS(pair, nil)
	if err != nil {
		return err
	}
	if !ok {
		return api.ErrLockNotHeld
	}
	cl.index = 0
	return nil
}
