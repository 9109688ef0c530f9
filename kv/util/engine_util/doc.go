package engine_util

/*
An engine is a low-level system for storing key/value pairs locally (without distribution or any transaction support,
etc.). This package contains code for interacting with such engines.

CF means 'column family'. A good description of column families is given in https://github.com/facebook/rocksdb/wiki/Column-Families
(specifically for RocksDB, but the general concepts are universal). In short, a column family is a key namespace.
Badger has no native column families, so a CF is emulated by prefixing every key with `<cf>_`.

The execution engine stores applied transaction writes in the `default` and `write` CFs (see
kv/transaction/mvcc). The `meta` CF keeps small protobuf-encoded records such as the last applied
execution sequence.

engine_util includes the following files:

* util: helpers for reading and writing single CF keys and protobuf meta records.
* write_batch: code to batch writes into a single, atomic 'transaction'.
* cf_iterator: code to iterate over a whole column family in badger.
*/
