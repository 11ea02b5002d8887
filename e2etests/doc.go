// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package e2etests contains end-to-end tests for tracebox. They build the
// tracebox and tracebox-server binaries and run them with elevated
// privileges against localhost and a public target.
package e2etests
