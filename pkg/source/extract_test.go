/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package source_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solidkit/buildcore/pkg/source"
)

const sample = `
// SPDX-License-Identifier: MIT
pragma solidity ^0.8.0;

import "./Bar.sol";
import {IFoo} from "somepkg/contracts/IFoo.sol";

/* import "commented/Out.sol";
   pragma solidity ^0.4.0;
*/

contract Foo {
    string s = "import \"NotAnImport.sol\";";
}
`

func TestExtract(t *testing.T) {
	imports, pragmas := source.Extract(sample)
	require.Equal(t, []string{"./Bar.sol", "somepkg/contracts/IFoo.sol"}, imports)
	require.Equal(t, []string{"^0.8.0"}, pragmas)
}

func TestExtractNoDirectives(t *testing.T) {
	imports, pragmas := source.Extract("contract Empty {}")
	require.Empty(t, imports)
	require.Empty(t, pragmas)
}
